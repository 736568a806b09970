package config

import "os"

type Config struct {
	Port                    string
	Env                     string
	MetricsPort             string
	FirebaseCredentialsPath string
	FirebaseStorageBucket   string
	GoogleMapsAPIKey        string
	PostgresConnStr         string
	MongoURI                string
}

func Load() *Config {
	return &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		MetricsPort:             getEnv("METRICS_PORT", "9090"),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", "./firebase_credentials.json"),
		FirebaseStorageBucket:   getEnv("FIREBASE_STORAGE_BUCKET", ""),
		GoogleMapsAPIKey:        getEnv("GOOGLE_MAPS_API_KEY", ""),
		PostgresConnStr:         getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:                getEnv("MONGO_URI", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
