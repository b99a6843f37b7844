// Package panel tracks which game panel is visible and the session's pending
// transaction notifications. Visibility is a single active-panel value rather
// than a set of independent flags: opening one panel closes the rest, with
// one overlay exception documented on Open.
package panel

import "sync"

// Panel identifies one of the mutually exclusive UI panels.
type Panel string

const (
	PanelNone       Panel = ""
	PanelWallet     Panel = "wallet"
	PanelInventory  Panel = "inventory"
	PanelLaunch     Panel = "launch"
	PanelPrediction Panel = "prediction"
	PanelStaking    Panel = "staking"
	PanelOTC        Panel = "otc"

	// PanelTokenDetail is the one overlay panel: it renders on top of the
	// inventory without closing it.
	PanelTokenDetail Panel = "token-detail"
)

// Coordinator holds the active panel and the optional overlay. The zero value
// is ready to use and equals the state after a page reload: nothing open.
type Coordinator struct {
	mu      sync.RWMutex
	active  Panel
	overlay Panel

	listeners []func(active, overlay Panel)
}

func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Open activates a panel. Any previously active panel closes, except when the
// requested panel is the token-detail overlay and the inventory is active: in
// that case the overlay stacks on top and the inventory stays open.
func (c *Coordinator) Open(p Panel) {
	c.mu.Lock()
	if p == PanelTokenDetail && c.active == PanelInventory {
		c.overlay = p
	} else {
		c.active = p
		c.overlay = PanelNone
	}
	active, overlay := c.active, c.overlay
	listeners := c.listeners
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(active, overlay)
	}
}

// Close dismisses a panel. Closing the base panel also dismisses its overlay;
// closing the overlay leaves the base panel up. Closing a panel that is not
// open is a no-op.
func (c *Coordinator) Close(p Panel) {
	c.mu.Lock()
	switch p {
	case c.overlay:
		c.overlay = PanelNone
	case c.active:
		c.active = PanelNone
		c.overlay = PanelNone
	default:
		c.mu.Unlock()
		return
	}
	active, overlay := c.active, c.overlay
	listeners := c.listeners
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(active, overlay)
	}
}

// CloseAll resets to the reload state.
func (c *Coordinator) CloseAll() {
	c.mu.Lock()
	c.active = PanelNone
	c.overlay = PanelNone
	active, overlay := c.active, c.overlay
	listeners := c.listeners
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(active, overlay)
	}
}

// Active returns the base panel, PanelNone if nothing is open.
func (c *Coordinator) Active() Panel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Overlay returns the stacked overlay panel, PanelNone if absent.
func (c *Coordinator) Overlay() Panel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.overlay
}

// IsOpen reports whether p is currently visible, as base or overlay.
func (c *Coordinator) IsOpen(p Panel) bool {
	if p == PanelNone {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active == p || c.overlay == p
}

// Subscribe registers a callback invoked after every visibility change.
func (c *Coordinator) Subscribe(fn func(active, overlay Panel)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}
