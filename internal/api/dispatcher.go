package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/nerrad567/edgelink-core/internal/audit"
	"github.com/nerrad567/edgelink-core/internal/auth"
	"github.com/nerrad567/edgelink-core/internal/component"
	"github.com/nerrad567/edgelink-core/internal/infrastructure/logging"
)

// ComponentStore is the component registry as seen by command handlers.
// *component.Registry satisfies it.
type ComponentStore interface {
	ChannelSource
	SnapshotSource
	Resolve(addr component.ChannelAddress) (*component.Channel, error)
	CreateController(object map[string]any) (component.Controller, error)
	RemoveThing(id string) (bool, error)
	Schedulers() []*component.Scheduler
	Controllers() []component.Controller
	Persist() error
}

// PowerController applies manual active/reactive power setpoints.
// *component.ManualPQController satisfies it.
type PowerController interface {
	SetManualPQ(p, q int64) error
	ResetManualPQ() error
}

// auditTimeout bounds a single audit write.
const auditTimeout = 5 * time.Second

var errManualPQUnavailable = errors.New("manual power control is not available")

// pathControllers is the only create path supported.
const pathControllers = "controllers"

// commandDispatcher executes the subscribe, config and manualPQ parts of a
// device request, in that order. Every failure becomes an ERROR
// notification to the originating connection.
type commandDispatcher struct {
	components ComponentStore
	power      PowerController
	audit      audit.Recorder
	logger     *logging.Logger
}

func (d *commandDispatcher) dispatch(ctx context.Context, c *Conn, req *deviceRequest) {
	if req.hasSubscribe {
		d.guard(c, "subscribe", func() error { return d.subscribe(c, req.subscribe) })
	}

	if req.hasConfig {
		ops, err := parseConfigOperations(req.config)
		if err != nil {
			d.fail(c, "config", err)
		}
		for _, op := range ops {
			d.guard(c, op.operation(), func() error { return d.runConfig(ctx, c, op) })
		}
	}

	if req.hasManualPQ {
		d.guard(c, "manualPQ", func() error { return d.manualPQ(ctx, c, req.manualPQ) })
	}
}

// guard runs fn, turning an error or a panic into an ERROR notification.
func (d *commandDispatcher) guard(c *Conn, name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic in command handler", "operation", name, "user", c.Username(), "panic", r)
			c.notify(SeverityError, fmt.Sprintf("operation [%s] failed: internal error", name))
		}
	}()
	if err := fn(); err != nil {
		d.fail(c, name, err)
	}
}

func (d *commandDispatcher) fail(c *Conn, name string, err error) {
	d.logger.Warn("command failed", "operation", name, "user", c.Username(), "error", err)
	c.notify(SeverityError, err.Error())
}

func (d *commandDispatcher) subscribe(c *Conn, v any) error {
	if err := auth.Require(c.Session(), auth.PermChannelRead); err != nil {
		return err
	}
	tags, err := parseTags(v)
	if err != nil {
		return err
	}
	c.Subscribe(tags...)
	d.logger.Debug("subscribed", "user", c.Username(), "tags", tags)
	return nil
}

func (d *commandDispatcher) runConfig(ctx context.Context, c *Conn, op configOperation) error {
	switch op := op.(type) {
	case updateOperation:
		return d.update(ctx, c, op)
	case createOperation:
		return d.create(ctx, c, op)
	case deleteOperation:
		return d.delete(ctx, c, op)
	case getOperation:
		return d.get(c, op)
	case malformedOperation:
		return op.err
	case unknownOperation:
		return fmt.Errorf("operation [%s] is not implemented", op.name)
	default:
		return fmt.Errorf("operation [%s] is not implemented", op.operation())
	}
}

func (d *commandDispatcher) update(ctx context.Context, c *Conn, op updateOperation) error {
	if err := auth.Require(c.Session(), auth.PermChannelWrite); err != nil {
		return err
	}

	addr := component.ChannelAddress{Component: op.thing, Channel: op.channel}
	ch, err := d.components.Resolve(addr)
	if err != nil {
		return fmt.Errorf("unable to update [%s]: %w", addr, err)
	}
	if !ch.IsConfig() {
		return fmt.Errorf("unable to update [%s]: %w", addr, component.ErrNotConfigChannel)
	}
	applied, err := ch.Update(op.value)
	if err != nil {
		return fmt.Errorf("unable to update [%s]: %w", addr, err)
	}
	if err := d.components.Persist(); err != nil {
		return fmt.Errorf("updated [%s] but saving configuration failed: %w", addr, err)
	}

	value := component.FormatValue(applied)
	d.logger.Info("channel updated", "address", addr.String(), "value", value, "user", c.Username())
	d.record(ctx, c, audit.ActionUpdate, audit.EntityChannel, addr.String(), map[string]any{"value": applied})
	c.notify(SeveritySuccess, fmt.Sprintf("Successfully updated [%s] to [%s]", addr, value))
	return nil
}

func (d *commandDispatcher) create(ctx context.Context, c *Conn, op createOperation) error {
	if err := auth.Require(c.Session(), auth.PermControllerManage); err != nil {
		return err
	}

	id, _ := op.object["id"].(string) //nolint:errcheck // validated by CreateController
	if component.IsReservedID(id) {
		return fmt.Errorf("unable to create [%s]: %w", id, component.ErrReservedID)
	}
	if !slices.Contains(op.path, pathControllers) {
		return fmt.Errorf("unable to create [%s]: unsupported path %v", id, op.path)
	}

	ctrl, err := d.components.CreateController(op.object)
	if err != nil {
		return fmt.Errorf("unable to create [%s]: %w", id, err)
	}
	if err := d.components.Persist(); err != nil {
		return fmt.Errorf("created [%s] but saving configuration failed: %w", ctrl.ID(), err)
	}

	d.record(ctx, c, audit.ActionCreate, audit.EntityController, ctrl.ID(), map[string]any{"class": ctrl.Class()})
	c.notify(SeveritySuccess, fmt.Sprintf("Controller [%s] created", ctrl.ID()))
	return nil
}

func (d *commandDispatcher) delete(ctx context.Context, c *Conn, op deleteOperation) error {
	if err := auth.Require(c.Session(), auth.PermControllerManage); err != nil {
		return err
	}

	removed, err := d.components.RemoveThing(op.thing)
	if err != nil {
		return fmt.Errorf("unable to delete [%s]: %w", op.thing, err)
	}
	if removed {
		if err := d.components.Persist(); err != nil {
			return fmt.Errorf("deleted [%s] but saving configuration failed: %w", op.thing, err)
		}
		d.record(ctx, c, audit.ActionDelete, audit.EntityController, op.thing, nil)
	}

	c.notify(SeveritySuccess, fmt.Sprintf("Controller [%s] deleted", op.thing))
	return nil
}

func (d *commandDispatcher) get(c *Conn, op getOperation) error {
	if err := auth.Require(c.Session(), auth.PermChannelRead); err != nil {
		return err
	}

	switch op.target {
	case "scheduler":
		for _, s := range d.components.Schedulers() {
			if err := notifyJSON(c, "Scheduler: ", s.Describe()); err != nil {
				return err
			}
		}
	case "controllers":
		for _, ctrl := range d.components.Controllers() {
			if err := notifyJSON(c, "Controller: ", component.Describe(ctrl)); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown get target [%s]", op.target)
	}
	return nil
}

func notifyJSON(c *Conn, prefix string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", prefix, err)
	}
	c.notify(SeverityInfo, prefix+string(b))
	return nil
}

func (d *commandDispatcher) manualPQ(ctx context.Context, c *Conn, v any) error {
	if err := auth.Require(c.Session(), auth.PermPowerControl); err != nil {
		return err
	}
	req, err := parseManualPQ(v)
	if err != nil {
		return err
	}
	if d.power == nil {
		return errManualPQUnavailable
	}

	if req.reset {
		if err := d.power.ResetManualPQ(); err != nil {
			return fmt.Errorf("resetting power setpoint: %w", err)
		}
		d.record(ctx, c, audit.ActionManualPQ, audit.EntityPower, component.ManualPQID, map[string]any{"mode": component.ModeAuto})
		c.notify(SeveritySuccess, "Power setpoint reset")
		return nil
	}

	if err := d.power.SetManualPQ(req.p, req.q); err != nil {
		return fmt.Errorf("applying power setpoint: %w", err)
	}
	d.record(ctx, c, audit.ActionManualPQ, audit.EntityPower, component.ManualPQID,
		map[string]any{"mode": component.ModeManual, "p": req.p, "q": req.q})
	c.notify(SeveritySuccess, fmt.Sprintf("Power setpoint applied: P=%d, Q=%d", req.p, req.q))
	return nil
}

// record writes an audit entry. Failures are logged and otherwise ignored.
func (d *commandDispatcher) record(ctx context.Context, c *Conn, action, entityType, entityID string, details map[string]any) {
	if d.audit == nil {
		return
	}
	e := &audit.Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Source:     audit.SourceWebSocket,
		Details:    details,
	}
	if s := c.Session(); s != nil {
		e.UserID = s.UserID
	}

	ctx, cancel := context.WithTimeout(ctx, auditTimeout)
	defer cancel()
	if err := d.audit.Record(ctx, e); err != nil {
		d.logger.Warn("audit write failed", "action", action, "entity_id", entityID, "error", err)
	}
}
