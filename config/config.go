package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"ci_db"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`
	CronSchedule string `envconfig:"CRON_SCHEDULE"`

	// MAG Evaluate API
	MAGBaseURL          string        `envconfig:"MAG_BASE_URL" default:"https://api.labs.cognitive.microsoft.com/academic/v1.0"`
	MAGKey              string        `envconfig:"MAG_KEY"`
	MAGEntityName       string        `envconfig:"MAG_ENTITY_NAME" default:"F.FN"`
	MAGQueryValues      []string      `envconfig:"MAG_QUERY_VALUES"`
	MAGMetadata         []string      `envconfig:"MAG_METADATA" default:"Id,Ti,AA.AfN,AA.AfId,AA.AuN,AA.DAuN,AA.AuId,AA.S,CC,D,F.DFN,F.FId,F.FN,J.JN,J.JId,C.CId,C.CN,RId,Y,DOI,PB,BT,IA,Pt,prob,logprob"`
	MAGStartDate        string        `envconfig:"MAG_START_DATE"`
	MAGEndDate          string        `envconfig:"MAG_END_DATE"`
	MAGIntervalsPerYear int           `envconfig:"MAG_INTERVALS_IN_A_YEAR" default:"1"`
	MAGPageSize         int           `envconfig:"MAG_QUERY_COUNT" default:"1000"`
	MAGMaxPages         int           `envconfig:"MAG_MAX_PAGES" default:"0"`
	MAGStopPolicy       string        `envconfig:"MAG_STOP_POLICY" default:"short"`
	MAGWithDOI          bool          `envconfig:"MAG_WITH_DOI" default:"false"`
	MAGRateLimit        float64       `envconfig:"MAG_RATE_LIMIT" default:"3"`
	MAGTimeout          time.Duration `envconfig:"MAG_TIMEOUT" default:"60s"`
	MAGMaxExprLength    int           `envconfig:"MAG_MAX_EXPR_LENGTH" default:"1800"`
	MAGMaxExprTerms     int           `envconfig:"MAG_MAX_EXPR_TERMS" default:"0"`

	// Rohdaten der MAG-Antworten
	StorePath   string `envconfig:"STORE_PATH" default:"data/raw"`
	StorePrefix string `envconfig:"STORE_PREFIX" default:"mag_papers"`

	// Kohorten
	CohortMode   string   `envconfig:"COHORT_MODE" default:"groups"`
	CIFos        []string `envconfig:"CI_FOS"`
	AIFos        []string `envconfig:"AI_FOS"`
	CoreFos      []string `envconfig:"CORE_FOS"`
	CoreLabel    string   `envconfig:"CORE_LABEL" default:"core"`
	ControlLabel string   `envconfig:"CONTROL_LABEL" default:"control"`

	OpenAccessJournals      []string `envconfig:"OPEN_ACCESS_JOURNALS" default:"arxiv,biorxiv,medrxiv,ssrn,chemrxiv"`
	NonIndustryAffiliations []string `envconfig:"NON_INDUSTRY_AFFILIATIONS" default:"university,universidad,universität,université,college,institute,school,hospital,academy,laboratory,council,ministry,agency"`

	// Google Places für das Geocoding der Affiliations
	GoogleAPIKey    string  `envconfig:"GOOGLE_KEY"`
	GoogleBaseURL   string  `envconfig:"GOOGLE_BASE_URL" default:"https://maps.googleapis.com/maps/api/place"`
	GoogleRateLimit float64 `envconfig:"GOOGLE_RATE_LIMIT" default:"10"`

	// Unpaywall für Open-Access-Fundorte (optional)
	UnpaywallEmail     string  `envconfig:"UNPAYWALL_EMAIL"`
	UnpaywallBaseURL   string  `envconfig:"UNPAYWALL_BASE_URL" default:"https://api.unpaywall.org/v2"`
	UnpaywallRateLimit float64 `envconfig:"UNPAYWALL_RATE_LIMIT" default:"10"`

	// S3-Spiegel der Rohdaten (optional)
	S3Key    string `envconfig:"S3_KEY"`
	S3Secret string `envconfig:"S3_SECRET"`
	S3URL    string `envconfig:"S3_URL"`
	S3Region string `envconfig:"S3_REGION" default:"eu-central-1"`
	S3Bucket string `envconfig:"S3_BUCKET"`

	// Neo4j für den Export des Kookkurrenz-Graphen (optional)
	Neo4jURI      string `envconfig:"NEO4J_URI"`
	Neo4jUser     string `envconfig:"NEO4J_USER" default:"neo4j"`
	Neo4jPassword string `envconfig:"NEO4J_PASSWORD"`
	Neo4jDatabase string `envconfig:"NEO4J_DATABASE"`

	CooccurrenceCohorts   []string `envconfig:"COOCCURRENCE_COHORTS" default:"ci,ai_ci"`
	CooccurrenceMinWeight int      `envconfig:"COOCCURRENCE_MIN_WEIGHT" default:"15"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// S3Enabled meldet, ob ein S3-Spiegel konfiguriert ist.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3URL != ""
}

// DateWindowed meldet, ob die Sammlung in Zeitfenster aufgeteilt wird.
func (c *Config) DateWindowed() bool {
	return c.MAGStartDate != "" && c.MAGEndDate != ""
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return &c, err
	}
	return &c, c.validate()
}

func (c *Config) validate() error {
	if c.MAGPageSize <= 0 {
		return fmt.Errorf("MAG_QUERY_COUNT must be positive, got %d", c.MAGPageSize)
	}
	switch c.MAGStopPolicy {
	case "short", "empty":
	default:
		return fmt.Errorf("MAG_STOP_POLICY must be 'short' or 'empty', got %q", c.MAGStopPolicy)
	}
	switch c.CohortMode {
	case "groups", "core":
	default:
		return fmt.Errorf("COHORT_MODE must be 'groups' or 'core', got %q", c.CohortMode)
	}
	if c.DateWindowed() && c.MAGIntervalsPerYear <= 0 {
		return fmt.Errorf("MAG_INTERVALS_IN_A_YEAR must be positive, got %d", c.MAGIntervalsPerYear)
	}
	return nil
}
