package config

// localStorageConfig targets a development MinIO (DOCS_MINIO_ENDPOINT) over
// plain HTTP. Any DOCS_* variable still wins.
func localStorageConfig(env func(string) string) StorageConfig {
	c := loadStorageConfig(env)
	if c.Backend == "" && c.DatabaseURL == "" && c.DiskRoot == "" {
		c.Endpoint = firstNonEmpty(env("DOCS_MINIO_ENDPOINT"), c.Endpoint)
	}
	if c.Endpoint != "" {
		c.AccessKey = firstNonEmpty(c.AccessKey, "docbridge")
		c.SecretKey = firstNonEmpty(c.SecretKey, "docbridge123")
	}
	c.UseSSL = parseBool(env("DOCS_S3_USE_SSL"), false)
	return c
}
