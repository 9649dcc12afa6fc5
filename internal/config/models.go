package config

// Config represents the application configuration
type Config struct {
	Capture    CaptureConfig `json:"capture" yaml:"capture"`
	Preview    PreviewConfig `json:"preview" yaml:"preview"`
	AutoExit   bool          `json:"auto_exit" yaml:"auto_exit"`
	ServerPort int           `json:"server_port" yaml:"server_port"`
	LogLevel   string        `json:"log_level" yaml:"log_level"`
}

// CaptureConfig holds the persisted capture selection
type CaptureConfig struct {
	// AreaIndex is the last selected screen, all-screens or custom area slot.
	// Window selections are remembered by WindowKey instead.
	AreaIndex       int    `json:"area_index" yaml:"area_index"`
	WindowKey       string `json:"window_key" yaml:"window_key"`
	ScreenMethod    string `json:"screen_method" yaml:"screen_method"`
	WindowMethod    string `json:"window_method" yaml:"window_method"`
	FrameRate       int    `json:"framerate" yaml:"framerate"`
	CaptureCursor   bool   `json:"capture_cursor" yaml:"capture_cursor"`
	HideTaskbar     bool   `json:"hide_taskbar" yaml:"hide_taskbar"`
	CustomArea      Area   `json:"custom_area" yaml:"custom_area"`
	RefreshInterval string `json:"refresh_interval" yaml:"refresh_interval"`
}

// Area is a rectangle in virtual-screen coordinates
type Area struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Empty reports whether the area has no pixels
func (a Area) Empty() bool {
	return a.Width <= 0 || a.Height <= 0
}

// PreviewConfig represents preview window configuration
type PreviewConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	ScaleMode string `json:"scale_mode" yaml:"scale_mode"`
	ShowLabel bool   `json:"show_label" yaml:"show_label"`
	Title     string `json:"title" yaml:"title"`
	Width     int    `json:"width" yaml:"width"`
	Height    int    `json:"height" yaml:"height"`
}
