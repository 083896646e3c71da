package link

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"megaservo/protocol"
)

// maxDictionary bounds the identify download
const maxDictionary = 64 * 1024

// Dictionary is the firmware's description of itself
type Dictionary struct {
	Version   string            `json:"version"`
	Config    map[string]string `json:"config"`
	Commands  map[string]int    `json:"commands"`
	Responses map[string]int    `json:"responses"`
}

// ServoWiring is one SERVO_<oid> entry of the dictionary
type ServoWiring struct {
	OID    uint8
	Output string
}

// Identify downloads the firmware dictionary chunk by chunk
func (l *Link) Identify(ctx context.Context) (*Dictionary, error) {
	if l.transport == nil {
		return nil, ErrNotConnected
	}
	l.transport.DrainResponses()

	var raw []byte
	for {
		offset := uint32(len(raw))
		if err := l.send(ctx, protocol.MsgIdentify, offset, protocol.IdentifyChunkSize); err != nil {
			return nil, errors.Wrapf(err, "identify at %d", offset)
		}
		chunk, err := l.receiveIdentify(ctx, offset)
		if err != nil {
			return nil, errors.Wrapf(err, "identify at %d", offset)
		}
		raw = append(raw, chunk...)
		if len(chunk) < protocol.IdentifyChunkSize {
			break
		}
		if len(raw) > maxDictionary {
			return nil, errors.Errorf("dictionary exceeds %d bytes", maxDictionary)
		}
	}
	l.log.Debug("dictionary received", "bytes", len(raw))

	var d Dictionary
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, errors.Wrap(err, "parse dictionary")
	}
	return &d, nil
}

func (l *Link) receiveIdentify(ctx context.Context, offset uint32) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ResponseTimeout)
		defer cancel()
	}
	for {
		payload, err := l.transport.ReceiveResponse(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := protocol.DecodeIdentifyResponse(payload)
		if err != nil {
			l.log.Debug("skipping non-identify reply", "err", err)
			continue
		}
		if resp.Offset == offset {
			return append([]byte(nil), resp.Data...), nil
		}
	}
}

// Check reports every message whose ID differs from this host's table
func (d *Dictionary) Check() error {
	var err error
	if want := "megaservo-" + protocol.Version; d.Version != want {
		err = multierr.Append(err, errors.Errorf("firmware version %q, host speaks %q", d.Version, want))
	}
	for _, m := range protocol.Messages {
		table := d.Commands
		if m.Response {
			table = d.Responses
		}
		sig := m.Name
		if m.Format != "" {
			sig += " " + m.Format
		}
		id, ok := table[sig]
		switch {
		case !ok:
			err = multierr.Append(err, errors.Errorf("firmware lacks %q", sig))
		case id != int(m.ID):
			err = multierr.Append(err, errors.Errorf("%s has ID %d on the firmware, %d on the host", m.Name, id, m.ID))
		}
	}
	return err
}

// Servos lists the published servo outputs in oid order
func (d *Dictionary) Servos() []ServoWiring {
	var out []ServoWiring
	for name, v := range d.Config {
		rest, ok := strings.CutPrefix(name, "SERVO_")
		if !ok {
			continue
		}
		oid, err := strconv.ParseUint(rest, 10, 8)
		if err != nil {
			continue
		}
		out = append(out, ServoWiring{OID: uint8(oid), Output: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OID < out[j].OID })
	return out
}
