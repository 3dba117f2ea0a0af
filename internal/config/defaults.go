package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			Stage:    "dev",
			Region:   "us-west-2",
			LogLevel: "info",
		},
		Ingress: IngressConfig{
			Host:             "127.0.0.1",
			Port:             8080,
			VerifySignatures: true,
		},
		Worker: WorkerConfig{
			Host:   "127.0.0.1",
			Port:   8081,
			Target: "http://127.0.0.1:8081/invoke",
		},
		ParamStore: ParamStoreConfig{
			URL:      "redis://127.0.0.1:6379",
			DB:       0,
			BasePath: "/bedrock-slackbot",
		},
		Bedrock: BedrockConfig{},
		Audit: AuditConfig{
			Enabled:       true,
			DBPath:        "~/.bedrockbot/audit.db",
			RetentionDays: 90,
		},
	}
}
