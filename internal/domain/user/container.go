package user

import "sync"

// Container holds the signed-in user for one session
type Container struct {
	mu       sync.RWMutex
	user     *User
	onChange func()
}

// NewContainer creates an empty container
func NewContainer() *Container {
	return &Container{}
}

// OnChange registers a listener invoked after every mutation
func (c *Container) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Set stores a copy of u
func (c *Container) Set(u User) {
	c.mu.Lock()
	c.user = &u
	notify := c.onChange
	c.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// Get returns a copy of the held user
func (c *Container) Get() (User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.user == nil {
		return User{}, false
	}
	return *c.user, true
}

// Clear forgets the user
func (c *Container) Clear() {
	c.mu.Lock()
	c.user = nil
	notify := c.onChange
	c.mu.Unlock()

	if notify != nil {
		notify()
	}
}
