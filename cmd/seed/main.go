package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corvusHold/notify/internal/config"
	ddomain "github.com/corvusHold/notify/internal/directory/domain"
	drepo "github.com/corvusHold/notify/internal/directory/repository"
	dsvc "github.com/corvusHold/notify/internal/directory/service"
	idomain "github.com/corvusHold/notify/internal/identity/domain"
	isvc "github.com/corvusHold/notify/internal/identity/service"
)

func main() {
	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		fatalf("load config: %v", err)
	}
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	sub := os.Args[1]

	// token only signs; it never touches the directory.
	if sub == "token" {
		fs := flag.NewFlagSet("token", flag.ExitOnError)
		tf := tenantFlags(fs)
		userID := fs.String("user-id", os.Getenv("USER_ID"), "user id (sub claim)")
		name := fs.String("name", os.Getenv("DISPLAY_NAME"), "display name")
		role := fs.String("role", envOr("ROLE", idomain.RoleAdmin), "role claim")
		ttl := fs.Duration("ttl", cfg.DevTokenTTL, "token lifetime")
		_ = fs.Parse(os.Args[2:])
		tenant := tf.tenant()
		if *userID == "" {
			*userID = uuid.NewString()
		}
		id := idomain.Identity{UserID: *userID, DisplayName: *name, Role: strings.ToLower(*role), Tenant: tenant}
		tok, err := mintToken(cfg.JWTSigningKey, id, *ttl)
		if err != nil {
			fatalf("mint token: %v", err)
		}
		printEnv(map[string]string{
			"CLIENT_ID":      tenant.ClientID,
			"CONDOMINIUM_ID": tenant.CondominiumID,
			"USER_ID":        id.UserID,
			"TOKEN":          tok,
			"EXPIRES_AT":     time.Now().Add(*ttl).UTC().Format(time.RFC3339),
		})
		return
	}

	repo, closeRepo := openDirectory(ctx, cfg)
	defer closeRepo()
	directory := dsvc.New(repo)

	switch sub {
	case "member":
		fs := flag.NewFlagSet("member", flag.ExitOnError)
		tf := tenantFlags(fs)
		userID := fs.String("user-id", os.Getenv("USER_ID"), "user id (generated when empty)")
		name := fs.String("name", envOr("DISPLAY_NAME", "Test User"), "display name")
		email := fs.String("email", os.Getenv("EMAIL"), "email")
		role := fs.String("role", envOr("ROLE", idomain.RoleResident), "admin, admin-assistant, staff or resident")
		_ = fs.Parse(os.Args[2:])
		tenant := tf.tenant()
		if strings.TrimSpace(*userID) == "" {
			*userID = uuid.NewString()
		}
		m, created, err := ensureMember(ctx, directory, tenant, memberSeed{UserID: *userID, Name: *name, Email: *email, Role: *role})
		if err != nil {
			fatalf("member create: %v", err)
		}
		tok, err := mintToken(cfg.JWTSigningKey, identityOf(m), cfg.DevTokenTTL)
		if err != nil {
			fatalf("mint token: %v", err)
		}
		printEnv(map[string]string{
			"CLIENT_ID":      tenant.ClientID,
			"CONDOMINIUM_ID": tenant.CondominiumID,
			"USER_ID":        m.UserID,
			"ROLE":           m.Role,
			"TOKEN":          tok,
		})
		reportMember(m, created)
	case "default":
		fs := flag.NewFlagSet("default", flag.ExitOnError)
		tf := tenantFlags(fs)
		residents := fs.Int("residents", envOrInt("RESIDENTS", 3), "number of resident members")
		staff := fs.String("staff-roles", envOr("ROLES", "admin,admin-assistant,staff"), "comma-separated staff roles to create, one member each")
		_ = fs.Parse(os.Args[2:])
		tenant := tf.tenant()
		out := map[string]string{
			"CLIENT_ID":      tenant.ClientID,
			"CONDOMINIUM_ID": tenant.CondominiumID,
		}
		for _, s := range defaultRoster(tenant, parseRoles(*staff), *residents) {
			m, created, err := ensureMember(ctx, directory, tenant, s)
			if err != nil {
				fatalf("member %s: %v", s.UserID, err)
			}
			reportMember(m, created)
			tok, err := mintToken(cfg.JWTSigningKey, identityOf(m), cfg.DevTokenTTL)
			if err != nil {
				fatalf("mint token: %v", err)
			}
			out[envKey(s.Key)+"_USER_ID"] = m.UserID
			out[envKey(s.Key)+"_TOKEN"] = tok
		}
		printEnv(out)
	default:
		usage()
		os.Exit(2)
	}
}

type tenantFlagSet struct {
	client *string
	condo  *string
}

func tenantFlags(fs *flag.FlagSet) tenantFlagSet {
	return tenantFlagSet{
		client: fs.String("client-id", envOr("CLIENT_ID", "client-dev"), "client (account) id"),
		condo:  fs.String("condominium-id", envOr("CONDOMINIUM_ID", "condo-dev"), "condominium id"),
	}
}

func (t tenantFlagSet) tenant() idomain.Tenant {
	tenant := idomain.Tenant{ClientID: strings.TrimSpace(*t.client), CondominiumID: strings.TrimSpace(*t.condo)}
	if !tenant.Valid() {
		fatalf("client-id and condominium-id are required")
	}
	return tenant
}

// openDirectory returns the postgres directory when NOTIFY_STORE=postgres.
// The memory directory only lives for this process, so seeding it is useful
// for minting tokens alone.
func openDirectory(ctx context.Context, cfg config.Config) (ddomain.Repository, func()) {
	if cfg.Store != config.StorePostgres {
		stderr("NOTIFY_STORE=%s: members are not persisted, only tokens are useful", cfg.Store)
		return drepo.NewMemory(), func() {}
	}
	pgCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		fatalf("invalid DATABASE_URL: %v", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pgCfg)
	if err != nil {
		fatalf("pg pool: %v", err)
	}
	return drepo.New(pool), pool.Close
}

type memberSeed struct {
	Key    string // output prefix in default mode
	UserID string
	Name   string
	Email  string
	Role   string
}

// ensureMember creates the member or returns the existing one.
func ensureMember(ctx context.Context, svc ddomain.Service, tenant idomain.Tenant, s memberSeed) (ddomain.Member, bool, error) {
	m, err := svc.Create(ctx, tenant, s.UserID, s.Name, s.Email, s.Role)
	if err == nil {
		return m, true, nil
	}
	if !errors.Is(err, ddomain.ErrMemberExists) {
		return ddomain.Member{}, false, err
	}
	m, err = svc.Get(ctx, tenant, strings.TrimSpace(s.UserID))
	if err != nil {
		return ddomain.Member{}, false, err
	}
	return m, false, nil
}

// defaultRoster builds deterministic user ids so reruns are idempotent.
func defaultRoster(tenant idomain.Tenant, staffRoles []string, residents int) []memberSeed {
	var out []memberSeed
	for _, r := range staffRoles {
		out = append(out, memberSeed{
			Key:    r,
			UserID: tenant.CondominiumID + "-" + r,
			Name:   "Seed " + r,
			Email:  r + "@" + tenant.CondominiumID + ".example",
			Role:   r,
		})
	}
	for i := 1; i <= residents; i++ {
		key := fmt.Sprintf("resident%d", i)
		out = append(out, memberSeed{
			Key:    key,
			UserID: tenant.CondominiumID + "-" + key,
			Name:   fmt.Sprintf("Resident %d", i),
			Email:  key + "@" + tenant.CondominiumID + ".example",
			Role:   idomain.RoleResident,
		})
	}
	return out
}

// parseRoles lowercases, trims and dedupes a comma-separated role list,
// dropping unknown roles.
func parseRoles(csv string) []string {
	seen := map[string]bool{}
	var roles []string
	for _, p := range strings.Split(csv, ",") {
		r := strings.ToLower(strings.TrimSpace(p))
		if r == "" || seen[r] {
			continue
		}
		if !idomain.KnownRole(r) {
			stderr("ignoring unknown role %q", r)
			continue
		}
		seen[r] = true
		roles = append(roles, r)
	}
	return roles
}

func identityOf(m ddomain.Member) idomain.Identity {
	return idomain.Identity{UserID: m.UserID, DisplayName: m.DisplayName, Role: m.Role, Tenant: m.Tenant}
}

func mintToken(key string, id idomain.Identity, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive")
	}
	return isvc.IssueToken(key, id, ttl)
}

func reportMember(m ddomain.Member, created bool) {
	if created {
		stderr("created %s %s in %s", m.Role, m.UserID, m.Tenant.Key())
	} else {
		stderr("existing %s %s in %s", m.Role, m.UserID, m.Tenant.Key())
	}
}

func envKey(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  seed member --client-id <id> --condominium-id <id> [--user-id <id>] [--role resident] [--name Name] [--email e@x]
  seed default --client-id <id> --condominium-id <id> [--residents 3] [--staff-roles admin,admin-assistant,staff]
  seed token --client-id <id> --condominium-id <id> [--user-id <id>] [--role admin] [--ttl 24h]

Environment fallbacks:
  CLIENT_ID, CONDOMINIUM_ID, USER_ID, DISPLAY_NAME, EMAIL, ROLE, ROLES, RESIDENTS
  NOTIFY_STORE, DATABASE_URL, JWT_SIGNING_KEY, DEV_TOKEN_TTL
`)
}

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func envOrInt(k string, def int) int {
	var n int
	if _, err := fmt.Sscanf(strings.TrimSpace(os.Getenv(k)), "%d", &n); err != nil || n < 0 {
		return def
	}
	return n
}

func printEnv(kv map[string]string) {
	// KEY=VALUE lines so callers can tee into a .env file and `source` it.
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s=%s\n", k, kv[k])
	}
}

func fatalf(f string, a ...any) {
	fmt.Fprintf(os.Stderr, f+"\n", a...)
	os.Exit(1)
}

func stderr(f string, a ...any) {
	fmt.Fprintf(os.Stderr, f+"\n", a...)
}
