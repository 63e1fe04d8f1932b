package component

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nerrad567/edgelink-core/internal/infrastructure/mqtt"
)

// ManualPQID is the internal id of the manual power controller.
const ManualPQID = "_manualPQ"

// ClassManualPQ is the class of the manual power controller.
const ClassManualPQ = "Controller.Api.ManualPQ"

// CommandPublisher sends commands to device drivers. *mqtt.Client satisfies it.
type CommandPublisher interface {
	PublishCommand(topic string, payload []byte) error
}

// PowerCommand is the payload sent to the storage driver.
type PowerCommand struct {
	Mode string `json:"mode"`
	P    *int64 `json:"p,omitempty"`
	Q    *int64 `json:"q,omitempty"`
}

// Power command modes.
const (
	ModeManual = "manual"
	ModeAuto   = "auto"
)

var manualPQChannels = []ChannelSpec{
	{ID: "Active", Type: TypeBool, Default: false},
	{ID: "P", Type: TypeNumber, Unit: "W"},
	{ID: "Q", Type: TypeNumber, Unit: "var"},
	{ID: "ess", Type: TypeString, Config: true, Default: "ess0"},
}

// ManualPQController overrides the storage's active and reactive power
// setpoints. The override is forwarded to the storage driver over MQTT and
// mirrored on its own Active/P/Q channels.
type ManualPQController struct {
	*Base

	mu        sync.Mutex
	publisher CommandPublisher
}

// NewManualPQController creates the controller for the storage essID. A
// nil publisher only tracks the override locally.
func NewManualPQController(essID string, publisher CommandPublisher) (*ManualPQController, error) {
	base, err := NewBase(ManualPQID, ClassManualPQ, []string{"Controller"}, manualPQChannels, map[string]any{"ess": essID})
	if err != nil {
		return nil, err
	}
	return &ManualPQController{Base: base, publisher: publisher}, nil
}

// SetManualPQ applies a manual setpoint in W and var.
func (c *ManualPQController) SetManualPQ(p, q int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.publish(PowerCommand{Mode: ModeManual, P: &p, Q: &q}); err != nil {
		return err
	}
	c.set("Active", true)
	c.set("P", p)
	c.set("Q", q)
	return nil
}

// ResetManualPQ returns the storage to automatic control.
func (c *ManualPQController) ResetManualPQ() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.publish(PowerCommand{Mode: ModeAuto}); err != nil {
		return err
	}
	c.set("Active", false)
	c.set("P", nil)
	c.set("Q", nil)
	return nil
}

// Active reports whether a manual setpoint is in force.
func (c *ManualPQController) Active() bool {
	ch, _ := c.Channel("Active")
	v, _ := ch.Value().(bool) //nolint:errcheck // type assertion
	return v
}

func (c *ManualPQController) essID() string {
	ch, _ := c.Channel("ess")
	s, _ := ch.Value().(string) //nolint:errcheck // type assertion
	return s
}

func (c *ManualPQController) publish(cmd PowerCommand) error {
	if c.publisher == nil {
		return nil
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encoding power command: %w", err)
	}
	topic := mqtt.Topics{}.ComponentCommand(c.essID(), "setPower")
	if err := c.publisher.PublishCommand(topic, payload); err != nil {
		return fmt.Errorf("publishing power command: %w", err)
	}
	return nil
}

func (c *ManualPQController) set(channelID string, v any) {
	ch, _ := c.Channel(channelID)
	ch.setValue(v) //nolint:errcheck // values are of the declared channel types
}
