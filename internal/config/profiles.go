package config

// DevProfile returns a starter configuration for local development:
// permissive auth, in-memory rate-limit counters, text logs.
func DevProfile() string {
	return `# a2a-authd development configuration
listen:
  host: 127.0.0.1
  port: 8420

database:
  path: a2a-authd.db

redis:
  enabled: false

security:
  auth:
    mode: passthrough
  rate_limit:
    enabled: true
    public:
      per_minute: 120
  fail_closed: false

logging:
  level: debug
  format: text
  output: stdout

reload:
  enabled: true
  watch_file: true
`
}

// ProdProfile returns a starter configuration for production: JWT auth,
// Redis-backed counters shared across instances, sampled audit logs.
func ProdProfile() string {
	return `# a2a-authd production configuration
listen:
  host: 0.0.0.0
  port: 8420
  max_connections: 1000
  global_rate_limit: 5000
  trusted_proxies: []
  # tls:
  #   cert_file: /etc/a2a-authd/tls.crt
  #   key_file: /etc/a2a-authd/tls.key

database:
  path: /var/lib/a2a-authd/a2a-authd.db

redis:
  enabled: true
  addr: 127.0.0.1:6379
  timeout: 500ms

security:
  auth:
    mode: jwt
    jwt:
      issuer: https://auth.example.com
      audience: a2a-authd
      jwks_url: https://auth.example.com/.well-known/jwks.json
  rate_limit:
    enabled: true
    public:
      per_minute: 120
  fail_closed: false

logging:
  level: info
  format: json
  output: stdout
  audit:
    sampling_rate: 0.1
    error_sampling_rate: 1.0

shutdown:
  timeout: 30s

reload:
  enabled: true
  watch_file: true
  debounce: 2s
`
}
