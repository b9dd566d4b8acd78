package config

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// App Configuration
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "text")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown", "yaml"})

	// Service Configuration
	v.SetDefault("service.baseURL", "http://localhost:3000")
	v.SetDefault("service.apiKey", "")
	v.SetDefault("service.reportURL", "")
	v.SetDefault("service.userAgent", "interviewroom")
	v.SetDefault("service.paths.start", "/api/interview/start")
	v.SetDefault("service.paths.answer", "/api/interview/answer")
	v.SetDefault("service.paths.tts", "/api/interview/tts")
	v.SetDefault("service.paths.finalize", "/api/interview/finalize")

	v.SetDefault("service.timeouts.start", 30*time.Second)
	v.SetDefault("service.timeouts.answer", 90*time.Second) // transcription plus question generation
	v.SetDefault("service.timeouts.tts", 20*time.Second)
	v.SetDefault("service.timeouts.finalize", 120*time.Second) // report generation is the slowest call

	v.SetDefault("service.rateLimit.enabled", true)
	v.SetDefault("service.rateLimit.requestsPerMin", 30)
	v.SetDefault("service.rateLimit.burstCapacity", 5)

	v.SetDefault("service.circuitBreaker.enabled", true)
	v.SetDefault("service.circuitBreaker.maxRequests", 1)
	v.SetDefault("service.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("service.circuitBreaker.timeout", 30*time.Second)
	v.SetDefault("service.circuitBreaker.minRequests", 3)
	v.SetDefault("service.circuitBreaker.failureThreshold", 0.6)

	// Client TLS defaults
	v.SetDefault("service.tls.mode", "disabled")
	v.SetDefault("service.tls.certFile", "")
	v.SetDefault("service.tls.keyFile", "")
	v.SetDefault("service.tls.caFile", "")
	v.SetDefault("service.tls.minVersion", "1.2")
	v.SetDefault("service.tls.insecureSkipVerify", false)
	v.SetDefault("service.tls.serverName", "")
	v.SetDefault("service.tls.autoReload.enabled", true)
	v.SetDefault("service.tls.autoReload.debounceDelay", time.Second)

	// Session Configuration
	v.SetDefault("session.targetQuestions", 10)
	v.SetDefault("session.useLocalSynthesis", false)
	v.SetDefault("session.playback", true)
	v.SetDefault("session.openReport", false)

	// Media Configuration
	v.SetDefault("media.device", "command")
	v.SetDefault("media.command", []string{"arecord", "-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "-t", "wav", "-"})
	v.SetDefault("media.answers", []string{})
	v.SetDefault("media.mimeType", "audio/wav")
	v.SetDefault("media.maxDuration", 3*time.Minute)
	v.SetDefault("media.maxBytes", 25*1024*1024) // 25MB
	v.SetDefault("media.chunkSize", 32*1024)

	// Speech Configuration
	v.SetDefault("speech.engine", "auto")
	v.SetDefault("speech.preferredVoices", []string{"Samantha", "Google US English", "en-us"})
	v.SetDefault("speech.rate", 0)
	v.SetDefault("speech.player", []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", "-"})

	// History Configuration
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")
	v.SetDefault("history.limit", 20)

	// Vault Configuration
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.pollInterval", 5*time.Minute)
	v.SetDefault("vault.secrets.serviceKey", "")
	v.SetDefault("vault.secrets.tlsCerts", "")

	// Observability Configuration
	v.SetDefault("observability.enabled", false)
	v.SetDefault("observability.serviceName", "interviewroom")
	v.SetDefault("observability.serviceVersion", "")  // Will use app version if empty
	v.SetDefault("observability.serviceInstance", "") // Will be auto-generated if empty
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.sampleRate", 1.0)

	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.sampleRate", 1.0)

	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)

	v.SetDefault("observability.customMetrics.serviceCalls.enabled", true)
	v.SetDefault("observability.customMetrics.serviceCalls.trackDuration", true)
	v.SetDefault("observability.customMetrics.serviceCalls.trackAudioSize", true)
	v.SetDefault("observability.customMetrics.session.enabled", true)
	v.SetDefault("observability.customMetrics.infrastructure.enabled", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackRateLimits", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackCertReload", true)

	v.SetDefault("observability.console.enabled", false)
	v.SetDefault("observability.console.prettyPrint", true)

	v.SetDefault("observability.prometheus.enabled", false)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9464")

	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
}
