package config

const (
	defaultConfigPath            = "~/.config/hirelens/config.toml"
	defaultBaseURL               = "http://localhost:5000"
	defaultServiceTimeoutSeconds = 30
	defaultAuthProvider          = "google"
	defaultTokenFile             = "token.json"
	defaultCallbackBind          = "127.0.0.1:5173"
	defaultCaptureBackend        = "ffmpeg"
	defaultVideoDevice           = "/dev/video0"
	defaultAudioDevice           = "default"
	defaultAudioFormat           = "pulse"
	defaultCaptureWidth          = 640
	defaultCaptureHeight         = 480
	defaultSampleRate            = 16000
	defaultQuestionCount         = 3
	defaultMaxAttempts           = 3
	defaultAttemptSeconds        = 90
	defaultFrameIntervalMS       = 100
	defaultJPEGQuality           = 80
	defaultAudioChunkSeconds     = 3
	defaultFallbackScore         = 50
	defaultRetryAttempts         = 3
	defaultRetryBaseDelayMS      = 500
	defaultRetryMaxDelayMS       = 4000
	defaultLogDir                = "~/.local/share/hirelens/logs"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 14
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Service: Service{
			BaseURL:        defaultBaseURL,
			TimeoutSeconds: defaultServiceTimeoutSeconds,
		},
		Auth: Auth{
			Provider:     defaultAuthProvider,
			CallbackBind: defaultCallbackBind,
		},
		Capture: Capture{
			Backend:       defaultCaptureBackend,
			VideoDevice:   defaultVideoDevice,
			AudioDevice:   defaultAudioDevice,
			AudioFormat:   defaultAudioFormat,
			Width:         defaultCaptureWidth,
			Height:        defaultCaptureHeight,
			SampleRate:    defaultSampleRate,
			MonitorDevice: true,
		},
		Interview: Interview{
			QuestionCount:     defaultQuestionCount,
			MaxAttempts:       defaultMaxAttempts,
			AttemptSeconds:    defaultAttemptSeconds,
			FrameIntervalMS:   defaultFrameIntervalMS,
			JPEGQuality:       defaultJPEGQuality,
			AudioChunkSeconds: defaultAudioChunkSeconds,
			FallbackScore:     defaultFallbackScore,
		},
		Retry: Retry{
			MaxAttempts: defaultRetryAttempts,
			BaseDelayMS: defaultRetryBaseDelayMS,
			MaxDelayMS:  defaultRetryMaxDelayMS,
		},
		Paths: Paths{
			DataDir: defaultDataDir(),
			LogDir:  defaultLogDir,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
