// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package blocks exposes a BitBrick device as a set of visual-programming
// blocks: the metadata a block host renders, and the methods it invokes when
// a program runs a block.
package blocks

import "sync"

// ProjectStopAll is emitted by the host when the user stops the program
const ProjectStopAll = "PROJECT_STOP_ALL"

// Runtime is the part of the block host an extension subscribes to
type Runtime interface {
	On(event string, handler func())
}

// EventBus is a minimal Runtime. Handlers run synchronously, in
// registration order, on the goroutine that calls Emit.
type EventBus struct {
	mu       sync.Mutex
	handlers map[string][]func()
}

// NewEventBus creates an empty event bus
func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[string][]func())}
}

// On registers handler for event
func (b *EventBus) On(event string, handler func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], handler)
}

// Emit runs every handler registered for event and returns how many ran
func (b *EventBus) Emit(event string) int {
	b.mu.Lock()
	handlers := append([]func(){}, b.handlers[event]...)
	b.mu.Unlock()

	for _, h := range handlers {
		h()
	}
	return len(handlers)
}
