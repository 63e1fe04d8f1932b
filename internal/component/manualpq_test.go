package component

import (
	"encoding/json"
	"errors"
	"testing"
)

type recordingPublisher struct {
	topics   []string
	payloads [][]byte
	err      error
}

func (p *recordingPublisher) PublishCommand(topic string, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

func TestManualPQController_SetAndReset(t *testing.T) {
	pub := &recordingPublisher{}
	c, err := NewManualPQController("ess0", pub)
	if err != nil {
		t.Fatalf("NewManualPQController() error = %v", err)
	}
	if c.ID() != ManualPQID || c.Active() {
		t.Fatalf("new controller id=%s active=%v", c.ID(), c.Active())
	}

	if err := c.SetManualPQ(1000, -200); err != nil {
		t.Fatalf("SetManualPQ() error = %v", err)
	}
	if !c.Active() {
		t.Error("Active() = false after SetManualPQ")
	}
	p, _ := c.Channel("P")
	if p.Value() != float64(1000) {
		t.Errorf("P = %v, want 1000", p.Value())
	}

	if len(pub.topics) != 1 || pub.topics[0] != "edgelink/command/ess0/setPower" {
		t.Fatalf("topics = %v", pub.topics)
	}
	var cmd PowerCommand
	if err := json.Unmarshal(pub.payloads[0], &cmd); err != nil {
		t.Fatalf("decoding command: %v", err)
	}
	if cmd.Mode != ModeManual || cmd.P == nil || *cmd.P != 1000 || cmd.Q == nil || *cmd.Q != -200 {
		t.Errorf("command = %+v", cmd)
	}

	if err := c.ResetManualPQ(); err != nil {
		t.Fatalf("ResetManualPQ() error = %v", err)
	}
	if c.Active() || p.Value() != nil {
		t.Errorf("after reset active=%v P=%v", c.Active(), p.Value())
	}
	if err := json.Unmarshal(pub.payloads[1], &cmd); err != nil {
		t.Fatalf("decoding command: %v", err)
	}
	if cmd.Mode != ModeAuto {
		t.Errorf("reset mode = %q, want auto", cmd.Mode)
	}
}

func TestManualPQController_PublishFailureKeepsState(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	c, err := NewManualPQController("ess0", pub)
	if err != nil {
		t.Fatalf("NewManualPQController() error = %v", err)
	}
	if err := c.SetManualPQ(1, 2); err == nil {
		t.Fatal("SetManualPQ() expected error")
	}
	if c.Active() {
		t.Error("failed command should not activate the override")
	}
}

func TestManualPQController_NilPublisher(t *testing.T) {
	c, err := NewManualPQController("ess1", nil)
	if err != nil {
		t.Fatalf("NewManualPQController() error = %v", err)
	}
	if err := c.SetManualPQ(5, 0); err != nil {
		t.Fatalf("SetManualPQ() error = %v", err)
	}
	if !c.Active() {
		t.Error("override should be tracked locally without a publisher")
	}
	if c.Config()["ess"] != "ess1" {
		t.Errorf("ess = %v", c.Config()["ess"])
	}
}
