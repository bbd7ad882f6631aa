package zwave

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestCommandApply(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		wantErr error
		call    string
	}{
		{"on", Command{Name: CommandOn, NodeID: 5}, nil, "SetValueBool 5/switch_binary/1/0 true"},
		{"off", Command{Name: CommandOff, NodeID: 5}, nil, "SetValueBool 5/switch_binary/1/0 false"},
		{
			"level",
			Command{Name: CommandSetLevel, NodeID: 5, Parameters: map[string]any{"level": float64(30)}},
			nil, "SetValueByte 5/switch_multilevel/1/0 30",
		},
		{
			"level out of range",
			Command{Name: CommandSetLevel, NodeID: 5, Parameters: map[string]any{"level": float64(150)}},
			ErrInvalidLevel, "",
		},
		{
			"level not a number",
			Command{Name: CommandSetLevel, NodeID: 5, Parameters: map[string]any{"level": "high"}},
			ErrInvalidParameters, "",
		},
		{
			"level fractional",
			Command{Name: CommandSetLevel, NodeID: 5, Parameters: map[string]any{"level": 2.5}},
			ErrInvalidParameters, "",
		},
		{"level missing", Command{Name: CommandSetLevel, NodeID: 5}, ErrInvalidParameters, ""},
		{
			"set value",
			Command{Name: CommandSetValue, NodeID: 5, Parameters: map[string]any{
				"command_class": float64(0x70), "index": float64(4), "value": float64(12),
			}},
			nil, "SetValueShort 5/configuration/1/4 12",
		},
		{
			"set value without value",
			Command{Name: CommandSetValue, NodeID: 5, Parameters: map[string]any{
				"command_class": float64(0x70), "index": float64(4),
			}},
			ErrInvalidParameters, "",
		},
		{
			"enable poll",
			Command{Name: CommandEnablePoll, NodeID: 5, Parameters: map[string]any{"command_class": float64(0x25)}},
			nil, "EnablePoll 5/switch_binary/1/0",
		},
		{
			"set name",
			Command{Name: CommandSetName, NodeID: 5, Parameters: map[string]any{"name": " Hall "}},
			nil, "SetNodeName 0000abcd 5  Hall ",
		},
		{
			"set location forwarded verbatim",
			Command{Name: CommandSetLocation, NodeID: 5, Parameters: map[string]any{"location": "  Kitchen  "}},
			nil, "SetNodeLocation 0000abcd 5   Kitchen  ",
		},
		{"set location missing", Command{Name: CommandSetLocation, NodeID: 5}, ErrInvalidParameters, ""},
		{"soft reset", Command{Name: CommandSoftReset}, nil, "SoftReset 0000abcd"},
		{"unknown", Command{Name: "explode", NodeID: 5}, ErrUnknownCommand, ""},
		{"unknown node", Command{Name: CommandOn, NodeID: 77}, ErrNodeNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, d, c := newTestExecutor()
			c.InsertNode(NodeRecord{NodeID: 5})
			c.AppendValue(5, testValue(5, ClassSwitchBinary, 1, 0, KindBool))
			c.AppendValue(5, testValue(5, ClassSwitchMultilevel, 1, 0, KindByte))
			c.AppendValue(5, testValue(5, ClassConfiguration, 1, 4, KindShort))

			err := tt.cmd.Apply(ex)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Apply() error = %v, want %v", err, tt.wantErr)
			}

			var want []string
			if tt.call != "" {
				want = []string{tt.call}
			}
			if got := d.getCalls(); !slices.Equal(got, want) {
				t.Errorf("calls = %v, want %v", got, want)
			}
		})
	}
}

type countingRecorder struct {
	commands []Command
	errs     []error
}

func (r *countingRecorder) RecordCommand(_ context.Context, _ string, cmd Command, err error) {
	r.commands = append(r.commands, cmd)
	r.errs = append(r.errs, err)
}

func TestCommandRecorders(t *testing.T) {
	a, b := &countingRecorder{}, &countingRecorder{}
	rs := CommandRecorders{a, nil, b}

	failure := errors.New("boom")
	rs.RecordCommand(context.Background(), "api", Command{Name: CommandOn, NodeID: 3}, failure)

	for _, r := range []*countingRecorder{a, b} {
		if len(r.commands) != 1 || r.commands[0].NodeID != 3 || r.errs[0] != failure {
			t.Errorf("recorder saw %+v %v", r.commands, r.errs)
		}
	}
}

func TestIsControllerCommand(t *testing.T) {
	if !IsControllerCommand(CommandHardReset) || !IsControllerCommand(CommandSoftReset) {
		t.Error("resets not treated as controller commands")
	}
	if IsControllerCommand(CommandOn) {
		t.Error("on treated as controller command")
	}
}
