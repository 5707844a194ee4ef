package user

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestContainer_SetGetClear(t *testing.T) {
	c := NewContainer()
	changes := 0
	c.OnChange(func() { changes++ })

	_, ok := c.Get()
	assert.False(t, ok)

	u := User{ID: uuid.New(), Email: "ada@example.com", Name: "Ada"}
	c.Set(u)

	got, ok := c.Get()
	assert.True(t, ok)
	assert.Equal(t, u, got)

	// the container holds its own copy
	u.Name = "changed"
	got, _ = c.Get()
	assert.Equal(t, "Ada", got.Name)

	c.Clear()
	_, ok = c.Get()
	assert.False(t, ok)
	assert.Equal(t, 2, changes)
}

func TestUser_DisplayName(t *testing.T) {
	assert.Equal(t, "Ada", (&User{Name: " Ada ", Email: "a@b.c"}).GetDisplayName())
	assert.Equal(t, "a@b.c", (&User{Email: "a@b.c"}).GetDisplayName())
}

func TestUser_BeforeCreateLowercasesEmail(t *testing.T) {
	u := &User{Email: "Ada@Example.COM"}
	assert.NoError(t, u.BeforeCreate(nil))
	assert.Equal(t, "ada@example.com", u.Email)
}
