package window

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/AreaStream/internal/logger"
)

const (
	iconicState = 3
	allDesktops = 0xFFFFFFFF
)

// X11Enumerator lists client windows through EWMH properties on the root window.
type X11Enumerator struct {
	conn     *xgb.Conn
	root     xproto.Window
	selfPID  int
	resolver PathResolver
	atoms    map[string]xproto.Atom
}

// NewX11Enumerator connects to the X server named by $DISPLAY.
func NewX11Enumerator(resolver PathResolver) (*X11Enumerator, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	if resolver == nil {
		resolver = ProcessResolver{}
	}

	screen := xproto.Setup(conn).DefaultScreen(conn)
	return &X11Enumerator{
		conn:     conn,
		root:     screen.Root,
		selfPID:  os.Getpid(),
		resolver: resolver,
		atoms:    make(map[string]xproto.Atom),
	}, nil
}

// Close closes the X11 connection
func (e *X11Enumerator) Close() error {
	e.conn.Close()
	return nil
}

// Enumerate returns the admitted windows in _NET_CLIENT_LIST order. Without a
// client list it falls back to the root window's children and reports
// ErrNoWindowList alongside whatever that produced.
func (e *X11Enumerator) Enumerate() ([]Entry, error) {
	log := logger.WithComponent("catalog")

	ids, listErr := e.clientList()
	if listErr != nil {
		log.Debug().Err(listErr).Msg("Client list unavailable, falling back to QueryTree")
		tree, err := xproto.QueryTree(e.conn, e.root).Reply()
		if err != nil {
			return nil, fmt.Errorf("failed to query root tree: %w", err)
		}
		ids = tree.Children
	}

	desktop, hasDesktop := e.currentDesktop()
	resolver := newCachedResolver(e.resolver)
	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		c, err := e.readCandidate(id, desktop, hasDesktop)
		if err != nil {
			// The window vanished between listing and reading it
			log.Debug().Uint32("window_id", uint32(id)).Err(err).Msg("Skipping unreadable window")
			continue
		}

		if reason := admit(c, e.selfPID); reason != admitted {
			log.Debug().
				Uint32("window_id", uint32(id)).
				Str("title", c.title).
				Str("reason", string(reason)).
				Msg("Window excluded")
			continue
		}

		path, err := resolver.ExecutablePath(c.pid)
		if err != nil {
			log.Debug().Uint32("window_id", uint32(id)).Err(err).Msg("Executable path unavailable")
		}

		entries = append(entries, Entry{
			Handle:         c.id,
			Title:          c.title,
			ExecutablePath: path,
		})
	}

	if listErr != nil {
		return entries, listErr
	}
	return entries, nil
}

// clientList reads _NET_CLIENT_LIST (array of 32-bit window IDs)
func (e *X11Enumerator) clientList() ([]xproto.Window, error) {
	atom, err := e.atom("_NET_CLIENT_LIST")
	if err != nil {
		return nil, err
	}

	reply, err := xproto.GetProperty(e.conn, false, e.root, atom,
		xproto.AtomWindow, 0, (1<<32)-1).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get _NET_CLIENT_LIST: %w", err)
	}
	if reply.ValueLen == 0 {
		return nil, ErrNoWindowList
	}

	ids := make([]xproto.Window, 0, len(reply.Value)/4)
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		ids = append(ids, xproto.Window(binary.LittleEndian.Uint32(reply.Value[i:])))
	}
	return ids, nil
}

// currentDesktop reads _NET_CURRENT_DESKTOP from the root window
func (e *X11Enumerator) currentDesktop() (uint32, bool) {
	v := e.cardinals(e.root, "_NET_CURRENT_DESKTOP", xproto.AtomCardinal)
	if len(v) == 0 {
		return 0, false
	}
	return v[0], true
}

// readCandidate gathers everything the exclusion rules need about win.
// desktop is the current desktop when hasDesktop is set.
func (e *X11Enumerator) readCandidate(win xproto.Window, desktop uint32, hasDesktop bool) (candidate, error) {
	attrs, err := xproto.GetWindowAttributes(e.conn, win).Reply()
	if err != nil {
		return candidate{}, err
	}

	c := candidate{
		id:       Handle(win),
		viewable: attrs.MapState == xproto.MapStateViewable,
	}

	c.title = e.stringProperty(win, "_NET_WM_NAME")
	if c.title == "" {
		c.title = e.stringProperty(win, "WM_NAME")
	}
	c.title = strings.TrimRight(c.title, "\x00")

	if v := e.cardinals(win, "_NET_WM_PID", xproto.AtomCardinal); len(v) > 0 {
		c.pid = int(v[0])
	}

	for _, t := range e.atomNames(win, "_NET_WM_WINDOW_TYPE") {
		if t == "_NET_WM_WINDOW_TYPE_DESKTOP" || t == "_NET_WM_WINDOW_TYPE_DOCK" {
			c.shell = true
		}
	}
	for _, s := range e.atomNames(win, "_NET_WM_STATE") {
		if s == "_NET_WM_STATE_HIDDEN" {
			c.iconic = true
		}
	}
	// ICCCM WM_STATE, first field 3 is IconicState
	if v := e.cardinals(win, "WM_STATE", xproto.GetPropertyTypeAny); len(v) > 0 && v[0] == iconicState {
		c.iconic = true
	}

	// 0xFFFFFFFF is sticky, shown on every desktop
	if v := e.cardinals(win, "_NET_WM_DESKTOP", xproto.AtomCardinal); hasDesktop && len(v) > 0 {
		c.cloaked = v[0] != allDesktops && v[0] != desktop
	}

	return c, nil
}

// atom gets an atom ID by name, caching the result
func (e *X11Enumerator) atom(name string) (xproto.Atom, error) {
	if a, ok := e.atoms[name]; ok {
		return a, nil
	}
	reply, err := xproto.InternAtom(e.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to intern %s: %w", name, err)
	}
	e.atoms[name] = reply.Atom
	return reply.Atom, nil
}

// stringProperty returns a text property or "" when unset
func (e *X11Enumerator) stringProperty(win xproto.Window, name string) string {
	atom, err := e.atom(name)
	if err != nil {
		return ""
	}
	reply, err := xproto.GetProperty(e.conn, false, win, atom,
		xproto.GetPropertyTypeAny, 0, (1<<32)-1).Reply()
	if err != nil || reply.ValueLen == 0 {
		return ""
	}
	return string(reply.Value)
}

// cardinals returns a 32-bit list property
func (e *X11Enumerator) cardinals(win xproto.Window, name string, typ xproto.Atom) []uint32 {
	atom, err := e.atom(name)
	if err != nil {
		return nil
	}
	reply, err := xproto.GetProperty(e.conn, false, win, atom, typ, 0, (1<<32)-1).Reply()
	if err != nil || reply.Format != 32 {
		return nil
	}
	out := make([]uint32, 0, len(reply.Value)/4)
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		out = append(out, binary.LittleEndian.Uint32(reply.Value[i:]))
	}
	return out
}

// atomNames resolves an ATOM[] property to the atom names
func (e *X11Enumerator) atomNames(win xproto.Window, name string) []string {
	values := e.cardinals(win, name, xproto.AtomAtom)
	names := make([]string, 0, len(values))
	for _, v := range values {
		reply, err := xproto.GetAtomName(e.conn, xproto.Atom(v)).Reply()
		if err != nil {
			continue
		}
		names = append(names, reply.Name)
	}
	return names
}
