package window

// candidate is a top-level window as read from the display server, before
// the exclusion rules are applied.
type candidate struct {
	id       Handle
	title    string
	pid      int
	viewable bool
	iconic   bool // minimised: WM_STATE IconicState or _NET_WM_STATE_HIDDEN
	cloaked  bool // parked on a desktop other than the current one
	shell    bool // desktop or dock window type
}

// exclusion names the rule that rejected a candidate
type exclusion string

const (
	admitted        exclusion = ""
	excludedShell   exclusion = "shell"
	excludedSelf    exclusion = "self"
	excludedHidden  exclusion = "not-visible"
	excludedTitle   exclusion = "empty-title"
	excludedCloaked exclusion = "cloaked"
	excludedOverlay exclusion = "overlay"
)

// visible reports whether the window counts as shown. A minimised window is
// unmapped by the window manager but still belongs to the session.
func (c candidate) visible() bool {
	return c.viewable || c.iconic
}

// admit applies the catalog exclusion rules in order.
func admit(c candidate, selfPID int) exclusion {
	switch {
	case c.shell:
		return excludedShell
	case selfPID != 0 && c.pid == selfPID:
		return excludedSelf
	case !c.visible():
		return excludedHidden
	case c.title == "":
		return excludedTitle
	case c.cloaked:
		return excludedCloaked
	case c.title == OverlayTitle:
		return excludedOverlay
	}
	return admitted
}
