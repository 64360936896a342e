package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// AppName scopes sessions; one table can serve several agent apps.
func AppName() string {
	return getenv("APP_NAME", "ventureai")
}

func SessionsTableName() string {
	return getenv("SESSIONS_TABLE", "")
}

func DashboardCacheTableName() string {
	return getenv("DASHBOARD_CACHE_TABLE", "")
}

func DashboardCacheTTL() time.Duration {
	return time.Duration(intEnv("DASHBOARD_CACHE_TTL_SECONDS", 300)) * time.Second
}

// Warehouse

func WarehouseBucket() string {
	return getenv("WAREHOUSE_BUCKET", "")
}

func AnalysesPrefix() string {
	p := getenv("ANALYSES_PREFIX", "analyses/")
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

func GlueDatabase() string {
	return getenv("GLUE_DATABASE", "venture_ai")
}

func AnalysesTableName() string {
	return getenv("ANALYSES_TABLE", "pitch_deck_analysis")
}

func AthenaWorkgroup() string {
	return getenv("ATHENA_WORKGROUP", "primary")
}

// AthenaOutput is an s3:// location for query results.
func AthenaOutput() string {
	return getenv("ATHENA_OUTPUT_S3", "")
}

// Reports

func ReportsBucket() string {
	return getenv("REPORTS_BUCKET", "")
}

func ReportURLMode() string {
	return strings.ToLower(getenv("REPORT_URL_MODE", "public"))
}

func ReportPublicBaseURL() string {
	return strings.TrimRight(getenv("REPORTS_PUBLIC_BASE_URL", ""), "/")
}

func ReportURLTTL() time.Duration {
	return time.Duration(intEnv("REPORT_URL_TTL_SECONDS", 7*24*3600)) * time.Second
}

// UploadsBucket stages documents for text extraction; defaults to the reports bucket.
func UploadsBucket() string {
	return getenv("UPLOADS_BUCKET", ReportsBucket())
}

func AnalysisTopicArn() string {
	return getenv("ANALYSIS_TOPIC_ARN", "")
}

// Agent

func AgentProvider() string {
	return strings.ToLower(getenv("AGENT_PROVIDER", "bedrock"))
}

func BedrockModelID() string {
	return getenv("BEDROCK_MODEL_ID", "")
}

func GeminiModel() string {
	return getenv("GEMINI_MODEL", "gemini-2.5-pro")
}

func MaxPDFBytes() int64 {
	return int64(intEnv("MAX_PDF_BYTES", 50<<20))
}
