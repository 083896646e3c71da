package core

import "megaservo/protocol"

// Dictionary describes the firmware to the host: its version, the message
// table and named constants such as the clock and the oid wiring. It is
// served in chunks by the identify command.
type Dictionary struct {
	registry  *CommandRegistry
	version   string
	names     []string
	constants map[string]string
	cached    []byte
}

var globalDictionary = NewDictionary(globalRegistry)

// NewDictionary creates a dictionary over the messages in reg
func NewDictionary(reg *CommandRegistry) *Dictionary {
	return &Dictionary{
		registry:  reg,
		version:   "megaservo-" + protocol.Version,
		constants: make(map[string]string),
	}
}

// RegisterConstant adds a constant to the global dictionary
func RegisterConstant(name string, value string) {
	globalDictionary.AddConstant(name, value)
}

// AddConstant sets a constant, replacing any previous value
func (d *Dictionary) AddConstant(name string, value string) {
	if _, ok := d.constants[name]; !ok {
		d.names = insertSorted(d.names, name)
	}
	d.constants[name] = value
	d.cached = nil
}

// RemoveConstant deletes a constant
func (d *Dictionary) RemoveConstant(name string) {
	if _, ok := d.constants[name]; !ok {
		return
	}
	delete(d.constants, name)
	for i, n := range d.names {
		if n == name {
			d.names = append(d.names[:i], d.names[i+1:]...)
			break
		}
	}
	d.cached = nil
}

// Constant returns the value of a constant
func (d *Dictionary) Constant(name string) (string, bool) {
	v, ok := d.constants[name]
	return v, ok
}

// SetVersion sets the firmware version string
func (d *Dictionary) SetVersion(version string) {
	d.version = version
	d.cached = nil
}

// Invalidate drops the cached encoding, e.g. after new registrations
func (d *Dictionary) Invalidate() {
	d.cached = nil
}

// Generate returns the dictionary as JSON, building it on first use
func (d *Dictionary) Generate() []byte {
	if d.cached == nil {
		d.cached = d.buildJSON()
	}
	return d.cached
}

// buildJSON writes the dictionary by hand; encoding/json does not fit the
// AVR flash budget
func (d *Dictionary) buildJSON() []byte {
	result := make([]byte, 0, 512)

	result = append(result, `{"version":"`...)
	result = appendEscaped(result, d.version)
	result = append(result, `","config":{`...)
	for i, name := range d.names {
		if i > 0 {
			result = append(result, ',')
		}
		result = append(result, '"')
		result = appendEscaped(result, name)
		result = append(result, `":"`...)
		result = appendEscaped(result, d.constants[name])
		result = append(result, '"')
	}

	var commands, responses []byte
	for _, cmd := range d.registry.Commands() {
		entry := make([]byte, 0, 48)
		entry = append(entry, '"')
		entry = appendEscaped(entry, cmd.Signature())
		entry = append(entry, `":`...)
		entry = append(entry, utoa(uint32(cmd.ID))...)
		if cmd.Handler == nil {
			responses = appendMember(responses, entry)
		} else {
			commands = appendMember(commands, entry)
		}
	}

	result = append(result, `},"commands":{`...)
	result = append(result, commands...)
	result = append(result, `},"responses":{`...)
	result = append(result, responses...)
	result = append(result, "}}"...)
	return result
}

// Chunk returns up to count bytes of the encoded dictionary from offset.
// The slice aliases the cache and is empty past the end.
func (d *Dictionary) Chunk(offset uint32, count uint8) []byte {
	data := d.Generate()
	if offset >= uint32(len(data)) {
		return nil
	}
	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}
	return data[offset:end]
}

// GetGlobalDictionary returns the global dictionary instance
func GetGlobalDictionary() *Dictionary {
	return globalDictionary
}

// handleIdentify returns one chunk of the dictionary
func handleIdentify(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	if count > 0xFF {
		count = 0xFF
	}

	chunk := globalDictionary.Chunk(offset, uint8(count))
	SendResponse("identify_response", protocol.IdentifyResponse{Offset: offset, Data: chunk}.Encode)
	return nil
}

func appendMember(list, entry []byte) []byte {
	if len(list) > 0 {
		list = append(list, ',')
	}
	return append(list, entry...)
}

func appendEscaped(dst []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' {
			dst = append(dst, '\\')
		}
		dst = append(dst, c)
	}
	return dst
}

func insertSorted(names []string, name string) []string {
	i := len(names)
	for i > 0 && names[i-1] > name {
		i--
	}
	names = append(names, "")
	copy(names[i+1:], names[i:])
	names[i] = name
	return names
}
