package config

const (
	defaultLogDir               = "~/.local/share/claimscan/logs"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultAPIBind              = "127.0.0.1:7519"
	defaultCameraWidth          = 1280
	defaultCameraHeight         = 720
	defaultCameraAcquireTimeout = 10
	defaultDetectTimeout        = 2
	defaultRequestTimeout       = 15
	defaultFrameIntervalMS      = 150
	defaultDispatchCooldownMS   = 2000
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Camera: Camera{
			Width:          defaultCameraWidth,
			Height:         defaultCameraHeight,
			AcquireTimeout: defaultCameraAcquireTimeout,
		},
		Decoder: Decoder{
			HardwareEnabled: true,
			DetectTimeout:   defaultDetectTimeout,
		},
		ItemService: ItemService{
			RequestTimeout: defaultRequestTimeout,
		},
		Scanner: Scanner{
			FrameInterval:    defaultFrameIntervalMS,
			DispatchCooldown: defaultDispatchCooldownMS,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
