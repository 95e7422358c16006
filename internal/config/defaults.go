package config

const (
	defaultDataDir              = "~/.local/share/marsad"
	defaultLogDir               = "~/.local/share/marsad/logs"
	defaultLawsDir              = "~/marsad/laws"
	defaultJudgmentsDir         = "~/marsad/judgments"
	defaultAPIBind              = "127.0.0.1:7911"
	defaultLLMBaseURL           = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel             = "google/gemini-3-flash-preview"
	defaultLLMTimeoutSeconds    = 60
	defaultLLMRetryAttempts     = 4
	defaultScanBatchSize        = 50
	defaultJudgmentSampleMax    = 200
	defaultAIBatchSize          = 5
	defaultAIMaxBatches         = 10
	defaultAIBatchDelaySeconds  = 2
	defaultStaleRunMinutes      = 30
	defaultMinLawRecords        = 1
	defaultMinJudgmentRecords   = 1
	defaultFTSTolerancePercent  = 1
	defaultTruncationMinLength  = 200
	defaultSummaryMaxContextLen = 4000
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:      defaultDataDir,
			LogDir:       defaultLogDir,
			LawsDir:      defaultLawsDir,
			JudgmentsDir: defaultJudgmentsDir,
			APIBind:      defaultAPIBind,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			RetryAttempts:  defaultLLMRetryAttempts,
		},
		Audit: Audit{
			ScanBatchSize:        defaultScanBatchSize,
			JudgmentSampleMax:    defaultJudgmentSampleMax,
			AIBatchSize:          defaultAIBatchSize,
			AIMaxBatches:         defaultAIMaxBatches,
			AIBatchDelaySeconds:  defaultAIBatchDelaySeconds,
			StaleRunMinutes:      defaultStaleRunMinutes,
			MinLawRecords:        defaultMinLawRecords,
			MinJudgmentRecords:   defaultMinJudgmentRecords,
			FTSTolerancePercent:  defaultFTSTolerancePercent,
			TruncationMinLength:  defaultTruncationMinLength,
			SummaryMaxContextLen: defaultSummaryMaxContextLen,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
