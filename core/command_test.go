package core

import (
	"strings"
	"testing"

	"megaservo/protocol"
)

func TestCommandRegistry(t *testing.T) {
	registry := NewCommandRegistry()

	var called bool
	id := registry.Register("test_command", "arg=%u", func(data *[]byte) error {
		called = true
		return nil
	})
	if id != 0 {
		t.Errorf("Expected first command to have ID 0, got %d", id)
	}

	cmd, ok := registry.GetCommand(id)
	if !ok || cmd.Name != "test_command" {
		t.Fatalf("Failed to retrieve registered command, got %+v", cmd)
	}

	var data []byte
	if err := registry.Dispatch(id, &data); err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}
	if !called {
		t.Error("Command handler was not called")
	}

	if err := registry.Dispatch(999, &data); err != ErrUnknownCommand {
		t.Errorf("Expected ErrUnknownCommand, got %v", err)
	}
	if again := registry.Register("test_command", "", nil); again != id {
		t.Errorf("Expected re-registration to return %d, got %d", id, again)
	}
}

func TestRegisterWithID(t *testing.T) {
	registry := NewCommandRegistry()

	if err := registry.RegisterWithID(3, "query", "oid=%c", func(*[]byte) error { return nil }); err != nil {
		t.Fatalf("RegisterWithID failed: %v", err)
	}
	if err := registry.RegisterWithID(3, "other", "", nil); err != ErrCommandIDTaken {
		t.Errorf("Expected ErrCommandIDTaken for reused ID, got %v", err)
	}
	if err := registry.RegisterWithID(4, "query", "", nil); err != ErrCommandIDTaken {
		t.Errorf("Expected ErrCommandIDTaken for moved name, got %v", err)
	}
	if err := registry.RegisterWithID(3, "query", "oid=%c", nil); err != nil {
		t.Errorf("Expected same name and ID to re-register, got %v", err)
	}

	// Sequential registration continues after the highest fixed ID
	if id := registry.Register("next", "", nil); id != 4 {
		t.Errorf("Expected next free ID 4, got %d", id)
	}
	// Responses have no handler and cannot be dispatched
	var data []byte
	if err := registry.Dispatch(3, &data); err != ErrUnknownCommand {
		t.Errorf("Expected ErrUnknownCommand for handler-less entry, got %v", err)
	}
}

func TestCommandRegistryDictionary(t *testing.T) {
	registry := NewCommandRegistry()
	registry.Register("set_servo_enable", "oid=%c enable=%c", func(*[]byte) error { return nil })
	registry.Register("ping", "", func(*[]byte) error { return nil })

	expected := "set_servo_enable oid=%c enable=%c\nping\n"
	if got := registry.GetDictionary(); got != expected {
		t.Errorf("Expected dictionary %q, got %q", expected, got)
	}
}

func TestCommandWithArguments(t *testing.T) {
	registry := NewCommandRegistry()

	var receivedValue uint32
	id := registry.Register("test_args", "value=%u", func(data *[]byte) error {
		val, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		receivedValue = val
		return nil
	})

	output := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(output, 12345)
	data := output.Result()

	if err := registry.Dispatch(id, &data); err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}
	if receivedValue != 12345 {
		t.Errorf("Expected value 12345, got %d", receivedValue)
	}
}

func TestGlobalRegistryMatchesMessageTable(t *testing.T) {
	if err := InitServoCommands(); err != nil {
		t.Fatalf("InitServoCommands failed: %v", err)
	}
	for _, m := range protocol.Messages {
		cmd, ok := GetGlobalRegistry().GetCommand(m.ID)
		if !ok || cmd.Name != m.Name {
			t.Errorf("Expected %s at ID %d, got %+v", m.Name, m.ID, cmd)
			continue
		}
		if (cmd.Handler == nil) != m.Response {
			t.Errorf("Expected %s handler presence to match response=%v", m.Name, m.Response)
		}
	}
	if !strings.HasPrefix(GetGlobalRegistry().GetDictionary(), "servo_state ") {
		t.Errorf("Expected servo_state first in the dictionary")
	}
}
