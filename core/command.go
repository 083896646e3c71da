package core

import (
	"errors"
	"sync"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrCommandIDTaken = errors.New("command ID already registered")
)

// CommandHandler decodes its own arguments from data, advancing it
type CommandHandler func(data *[]byte) error

// Command is one entry of the link's message table. Responses (MCU to
// host) have a nil handler.
type Command struct {
	ID      uint16
	Name    string
	Format  string // argument format, e.g. "oid=%c ticks=%hu"
	Handler CommandHandler
}

// Signature is the "name format" text of the entry
func (c *Command) Signature() string {
	if c.Format == "" {
		return c.Name
	}
	return c.Name + " " + c.Format
}

// CommandRegistry maps message IDs to handlers
type CommandRegistry struct {
	mu         sync.RWMutex
	commands   map[uint16]*Command
	nameToID   map[string]uint16
	nextID     uint16
	dictionary string
}

var globalRegistry = NewCommandRegistry()

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[uint16]*Command),
		nameToID: make(map[string]uint16),
	}
}

// RegisterCommand registers a command on the global registry with the next
// free ID
func RegisterCommand(name string, format string, handler CommandHandler) uint16 {
	return globalRegistry.Register(name, format, handler)
}

// Register adds a command with the next free ID. Registering a known name
// returns its existing ID.
func (r *CommandRegistry) Register(name string, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.nameToID[name]; exists {
		return id
	}
	for r.commands[r.nextID] != nil {
		r.nextID++
	}
	id := r.nextID
	r.add(&Command{ID: id, Name: name, Format: format, Handler: handler})
	return id
}

// RegisterWithID adds a command under a fixed ID, as the servo link's
// message table requires. Re-registering the same name and ID replaces the
// handler.
func (r *CommandRegistry) RegisterWithID(id uint16, name string, format string, handler CommandHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cmd, ok := r.commands[id]; ok && cmd.Name != name {
		return ErrCommandIDTaken
	}
	if prev, ok := r.nameToID[name]; ok && prev != id {
		return ErrCommandIDTaken
	}
	r.add(&Command{ID: id, Name: name, Format: format, Handler: handler})
	return nil
}

// add must be called with the lock held
func (r *CommandRegistry) add(cmd *Command) {
	r.commands[cmd.ID] = cmd
	r.nameToID[cmd.Name] = cmd.ID
	if cmd.ID >= r.nextID {
		r.nextID = cmd.ID + 1
	}
	r.rebuildDictionary()
}

// GetCommand retrieves a command by ID
func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

// GetCommandByName retrieves a command by name
func (r *CommandRegistry) GetCommandByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch calls the handler registered for cmdID
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(cmdID)
	if !ok || cmd.Handler == nil {
		return ErrUnknownCommand
	}
	return cmd.Handler(data)
}

// GetDictionary returns one "name format" line per message in ID order
func (r *CommandRegistry) GetDictionary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dictionary
}

// rebuildDictionary must be called with the lock held
func (r *CommandRegistry) rebuildDictionary() {
	dict := ""
	for i := uint16(0); i < r.nextID; i++ {
		cmd, ok := r.commands[i]
		if !ok {
			continue
		}
		dict += cmd.Signature() + "\n"
	}
	r.dictionary = dict
}

// Commands returns every entry in ID order
func (r *CommandRegistry) Commands() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Command, 0, len(r.commands))
	for i := uint16(0); i < r.nextID; i++ {
		if cmd, ok := r.commands[i]; ok {
			out = append(out, cmd)
		}
	}
	return out
}

// DispatchCommand dispatches on the global registry. Its signature matches
// protocol.CommandHandler.
func DispatchCommand(cmdID uint16, data *[]byte) error {
	return globalRegistry.Dispatch(cmdID, data)
}

// GetGlobalRegistry returns the global command registry
func GetGlobalRegistry() *CommandRegistry {
	return globalRegistry
}
