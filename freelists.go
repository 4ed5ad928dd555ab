// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fuse

import (
	"unsafe"

	"github.com/jacobsa/fuse/internal/buffer"
)

// LOCKS_EXCLUDED(c.mu)
func (c *Connection) getInMessage() *buffer.InMessage {
	if c.cfg.MessageProvider != nil {
		return c.cfg.MessageProvider.GetInMessage()
	}

	c.mu.Lock()
	p := c.inMessages.Get()
	c.mu.Unlock()

	if p == nil {
		return buffer.NewInMessage()
	}
	return (*buffer.InMessage)(p)
}

// LOCKS_EXCLUDED(c.mu)
func (c *Connection) putInMessage(m *buffer.InMessage) {
	if c.cfg.MessageProvider != nil {
		c.cfg.MessageProvider.PutInMessage(m)
		return
	}

	c.mu.Lock()
	c.inMessages.Put(unsafe.Pointer(m))
	c.mu.Unlock()
}

// LOCKS_EXCLUDED(c.mu)
func (c *Connection) getOutMessage() *buffer.OutMessage {
	if c.cfg.MessageProvider != nil {
		m := c.cfg.MessageProvider.GetOutMessage()
		m.Reset()
		return m
	}

	c.mu.Lock()
	p := c.outMessages.Get()
	c.mu.Unlock()

	if p == nil {
		m := &buffer.OutMessage{}
		m.Reset()
		return m
	}

	m := (*buffer.OutMessage)(p)
	m.Reset()
	return m
}

// LOCKS_EXCLUDED(c.mu)
func (c *Connection) putOutMessage(m *buffer.OutMessage) {
	if c.cfg.MessageProvider != nil {
		c.cfg.MessageProvider.PutOutMessage(m)
		return
	}

	c.mu.Lock()
	c.outMessages.Put(unsafe.Pointer(m))
	c.mu.Unlock()
}
