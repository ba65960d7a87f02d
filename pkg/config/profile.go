package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is the on-disk form of the adapter properties. Unset fields keep the
// value already in the store.
type Profile struct {
	Echo            *bool  `yaml:"echo,omitempty"`
	Linefeed        *bool  `yaml:"linefeed,omitempty"`
	Headers         *bool  `yaml:"headers,omitempty"`
	Spaces          *bool  `yaml:"spaces,omitempty"`
	DLC             *bool  `yaml:"dlc,omitempty"`
	CAF             *bool  `yaml:"caf,omitempty"`
	FlowControl     *bool  `yaml:"flow_control,omitempty"`
	BypassInit      *bool  `yaml:"bypass_init,omitempty"`
	AutoProtocol    *bool  `yaml:"auto_protocol,omitempty"`
	Timeout         *int   `yaml:"timeout,omitempty"`
	TimeoutMult     *int   `yaml:"timeout_multiplier,omitempty"`
	Protocol        *int   `yaml:"protocol,omitempty"`
	FlowControlMode *int   `yaml:"flow_control_mode,omitempty"`
	Header          string `yaml:"header,omitempty"`
	CanFilter       string `yaml:"can_filter,omitempty"`
	CanMask         string `yaml:"can_mask,omitempty"`
	CanExtAddr      string `yaml:"can_extended_address,omitempty"`
	FlowCtrlHeader  string `yaml:"flow_control_header,omitempty"`
	FlowCtrlData    string `yaml:"flow_control_data,omitempty"`
	Priority        string `yaml:"priority,omitempty"`
}

// LoadProfile reads a YAML profile from disk
func LoadProfile(filename string) (*Profile, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadProfile(f)
}

func ReadProfile(r io.Reader) (*Profile, error) {
	p := &Profile{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return p, nil
}

// Apply writes the fields that are set into the store. Nothing is written if any
// byte array field fails to parse.
func (p *Profile) Apply(s *Store) error {
	arrays := map[Property]string{
		HeaderBytes:       p.Header,
		CanFilter:         p.CanFilter,
		CanMask:           p.CanMask,
		CanExt:            p.CanExtAddr,
		CanFlowCtrlHeader: p.FlowCtrlHeader,
		CanFlowCtrlData:   p.FlowCtrlData,
		CanPriorityBits:   p.Priority,
	}
	parsed := make(map[Property]ByteArray)
	for prop, val := range arrays {
		if val == "" {
			continue
		}
		ba, err := ParseByteArray(val)
		if err != nil {
			return fmt.Errorf("%s: %w", prop, err)
		}
		parsed[prop] = ba
	}

	for prop, v := range map[Property]*bool{
		Echo:           p.Echo,
		Linefeed:       p.Linefeed,
		HeaderShow:     p.Headers,
		Spaces:         p.Spaces,
		CanDLC:         p.DLC,
		CanCAF:         p.CAF,
		CanFlowControl: p.FlowControl,
		BypassInit:     p.BypassInit,
		UseAutoSP:      p.AutoProtocol,
	} {
		if v != nil {
			s.SetBool(prop, *v)
		}
	}
	for prop, v := range map[Property]*int{
		Timeout:            p.Timeout,
		CanTimeoutMult:     p.TimeoutMult,
		ProtocolID:         p.Protocol,
		CanFlowControlMode: p.FlowControlMode,
	} {
		if v != nil {
			s.SetInt(prop, *v)
		}
	}
	for prop, ba := range parsed {
		s.SetBytes(prop, ba)
	}
	return nil
}

// ProfileFrom captures the current store content in one consistent read
func ProfileFrom(store *Store) *Profile {
	s := store.Snapshot()
	b := func(p Property) *bool { v := s.Bool(p); return &v }
	i := func(p Property) *int { v := s.Int(p); return &v }
	h := func(p Property) string { return s.Bytes(p).String() }
	return &Profile{
		Echo:            b(Echo),
		Linefeed:        b(Linefeed),
		Headers:         b(HeaderShow),
		Spaces:          b(Spaces),
		DLC:             b(CanDLC),
		CAF:             b(CanCAF),
		FlowControl:     b(CanFlowControl),
		BypassInit:      b(BypassInit),
		AutoProtocol:    b(UseAutoSP),
		Timeout:         i(Timeout),
		TimeoutMult:     i(CanTimeoutMult),
		Protocol:        i(ProtocolID),
		FlowControlMode: i(CanFlowControlMode),
		Header:          h(HeaderBytes),
		CanFilter:       h(CanFilter),
		CanMask:         h(CanMask),
		CanExtAddr:      h(CanExt),
		FlowCtrlHeader:  h(CanFlowCtrlHeader),
		FlowCtrlData:    h(CanFlowCtrlData),
		Priority:        h(CanPriorityBits),
	}
}

// Write encodes the profile as YAML
func (p *Profile) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return err
	}
	return enc.Close()
}
