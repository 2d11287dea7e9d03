// Package config handles viewer configuration loading and management.
package config

// Config holds all viewer settings.
type Config struct {
	Window   WindowConfig   `yaml:"window"`
	Display  DisplayConfig  `yaml:"display"`
	Playback PlaybackConfig `yaml:"playback"`
	Camera   CameraConfig   `yaml:"camera"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// WindowConfig holds display surface settings.
type WindowConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
}

// DisplayConfig selects which geometry layers start enabled.
type DisplayConfig struct {
	Markers             bool    `yaml:"markers"`
	ExperimentalMarkers bool    `yaml:"experimental_markers"`
	CenterOfMass        bool    `yaml:"center_of_mass"`
	SegmentCenterOfMass bool    `yaml:"segment_center_of_mass"`
	SegmentFrames       bool    `yaml:"segment_frames"`
	Meshes              bool    `yaml:"meshes"`
	Muscles             bool    `yaml:"muscles"`
	Ligaments           bool    `yaml:"ligaments"`
	Contacts            bool    `yaml:"contacts"`
	SoftContacts        bool    `yaml:"soft_contacts"`
	Wrappings           bool    `yaml:"wrappings"`
	Gravity             bool    `yaml:"gravity"`
	Floor               bool    `yaml:"floor"`
	FloorSize           float64 `yaml:"floor_size"`
}

// PlaybackConfig holds animation settings.
type PlaybackConfig struct {
	FPS                    float64 `yaml:"fps"`
	AutoStart              bool    `yaml:"auto_start"`
	IgnoreAnimationWarning bool    `yaml:"ignore_animation_warning"`
}

// CameraConfig holds the initial camera placement.
type CameraConfig struct {
	Zoom float64 `yaml:"zoom"`
	Roll float64 `yaml:"roll"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
		},
		Display: DisplayConfig{
			Markers:             true,
			ExperimentalMarkers: true,
			CenterOfMass:        true,
			SegmentCenterOfMass: true,
			SegmentFrames:       true,
			Meshes:              true,
			Muscles:             true,
			Ligaments:           true,
			Contacts:            true,
			SoftContacts:        true,
			Wrappings:           true,
			Gravity:             false,
			Floor:               false,
			FloorSize:           3.0,
		},
		Playback: PlaybackConfig{
			FPS:       30,
			AutoStart: false,
		},
		Camera: CameraConfig{
			Zoom: 1,
			Roll: -90,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
