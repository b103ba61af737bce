package gpu

import (
	"errors"

	"github.com/gogpu/wgpu/hal"
)

// ErrPassProtocol is returned when a pass is opened while another pass is
// active, or closed while not active.
var ErrPassProtocol = errors.New("gpu: pass protocol violation")

type passKind uint8

const (
	passIdle passKind = iota
	passCopy
	passRender
)

// passState is the tagged variant {Idle, Copy, Render{encoder}} owned by
// the session. Every pass-scoped entry matches on it, which keeps the
// "at most one open pass" invariant in one place.
type passState struct {
	kind   passKind
	render hal.RenderPassEncoder
}

func (p *passState) beginCopy() error {
	if p.kind != passIdle {
		return ErrPassProtocol
	}
	p.kind = passCopy
	return nil
}

func (p *passState) endCopy() error {
	if p.kind != passCopy {
		return ErrPassProtocol
	}
	p.kind = passIdle
	return nil
}

func (p *passState) beginRender(enc hal.RenderPassEncoder) error {
	if p.kind != passIdle {
		return ErrPassProtocol
	}
	p.kind = passRender
	p.render = enc
	return nil
}

func (p *passState) endRender() (hal.RenderPassEncoder, error) {
	if p.kind != passRender {
		return nil, ErrPassProtocol
	}
	enc := p.render
	p.kind = passIdle
	p.render = nil
	return enc, nil
}

func (p *passState) copyActive() bool   { return p.kind == passCopy }
func (p *passState) renderActive() bool { return p.kind == passRender }

// reset drops any open pass without recording an end. Used when a frame
// is abandoned after a scene trap.
func (p *passState) reset() {
	p.kind = passIdle
	p.render = nil
}
