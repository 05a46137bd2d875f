package config

const (
	defaultOutputDir  = "~/downloads/courses"
	defaultStateDir   = "~/.local/share/udl"
	defaultLogDir     = "~/.local/share/udl/logs"
	defaultDevicePath = "~/.config/udl/device.wvd"

	defaultBaseURL    = "https://www.udemy.com"
	defaultLicenseURL = "https://www.udemy.com/media-license-server/validate-auth-token"

	defaultYtDlpBinary    = "yt-dlp"
	defaultFFmpegBinary   = "ffmpeg"
	defaultPackagerBinary = "packager"

	// One interrupted course can be resumed the same day without consuming
	// a slot, so three is enough for normal use while staying under the
	// portal's attention threshold.
	defaultDailyCourseCap = 3
	defaultRunLectureCap  = 150
	defaultMaxQuality     = 1080

	defaultAPIMinMS     = 1000
	defaultAPIMaxMS     = 2500
	defaultLectureMinMS = 1000
	defaultLectureMaxMS = 3000

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
		},
		Portal: Portal{
			BaseURL:    defaultBaseURL,
			LicenseURL: defaultLicenseURL,
		},
		CDM: CDM{
			DevicePath: defaultDevicePath,
		},
		Tools: Tools{
			YtDlp:    defaultYtDlpBinary,
			FFmpeg:   defaultFFmpegBinary,
			Packager: defaultPackagerBinary,
		},
		Limits: Limits{
			DailyCourseCap: defaultDailyCourseCap,
			RunLectureCap:  defaultRunLectureCap,
			MaxQuality:     defaultMaxQuality,
		},
		Delays: Delays{
			APIMinMS:     defaultAPIMinMS,
			APIMaxMS:     defaultAPIMaxMS,
			LectureMinMS: defaultLectureMinMS,
			LectureMaxMS: defaultLectureMaxMS,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
