package server

import (
	"sort"
	"sync"
)

// Directory maps a user id to its live connection. Registration is
// last-write-wins: a user previously bound to one connection is silently
// rebound when a newer connection registers under the same id.
//
// All mutation happens from the chat server's event loop; the lock exists so
// snapshots and lookups are safe from other goroutines.
type Directory struct {
	mu    sync.RWMutex
	users map[int]*Client
}

func NewDirectory() *Directory {
	return &Directory{
		users: make(map[int]*Client),
	}
}

// Register binds userId to c and returns the connection it displaced, or nil
// if the user was offline or already bound to c.
func (d *Directory) Register(userId int, c *Client) *Client {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev := d.users[userId]
	d.users[userId] = c
	if prev == c {
		return nil
	}
	return prev
}

// Unregister removes c's binding. It only removes the entry if c is still
// the bound connection for its user, so a stale connection disconnecting
// cannot evict a newer registration. Safe to call repeatedly.
func (d *Directory) Unregister(c *Client) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	userId := c.user.Id
	if cur, ok := d.users[userId]; ok && cur == c {
		delete(d.users, userId)
		return userId, true
	}

	return 0, false
}

// Lookup resolves the current connection for userId. Never blocks.
func (d *Directory) Lookup(userId int) (*Client, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.users[userId]
	return c, ok
}

// OnlineUsers returns a sorted snapshot of the registered user ids.
func (d *Directory) OnlineUsers() []int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	users := make([]int, 0, len(d.users))
	for id := range d.users {
		users = append(users, id)
	}
	sort.Ints(users)

	return users
}
