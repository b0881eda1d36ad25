// gigctl drives the marketplace engagement core from the command line:
// sessions, gigs, submissions, chat, and profiles.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/ethgigs/gigboard/internal/auth"
	"github.com/ethgigs/gigboard/internal/chat"
	"github.com/ethgigs/gigboard/internal/config"
	"github.com/ethgigs/gigboard/internal/db"
	"github.com/ethgigs/gigboard/internal/gigs"
	"github.com/ethgigs/gigboard/internal/logging"
	"github.com/ethgigs/gigboard/internal/models"
	"github.com/ethgigs/gigboard/internal/profile"
	"github.com/ethgigs/gigboard/internal/session"
	"github.com/ethgigs/gigboard/internal/submissions"
	"github.com/ethgigs/gigboard/pkg/apierr"
	"github.com/ethgigs/gigboard/pkg/gigapi"
)

var version = "dev"

const usage = `gigctl - gig marketplace client

Usage:
  gigctl [-config path] <command> [flags]

Commands:
  login        -role worker|business -email E -password P
  logout       -role worker|business
  register     -role worker|business -name N -email E -password P
  gigs         [-company NAME]
  gig          <gig-id>
  create-gig   -title T -desc D -deadline YYYY-MM-DD -guidelines G
               -criteria C -bounty N -breakdown B -contact EMAIL -skills "a,b"
  submit       <gig-id> -link URL [-email E]
  submissions  <gig-id>
  chat         <gig-id>
  say          <gig-id> -m TEXT [-role worker|business]
  profile      <username>
  save-profile -about A -skills S [-twitter U] [-github U] [-linkedin U]
  version
`

type app struct {
	cfg      *config.Config
	log      *slog.Logger
	client   *gigapi.Client
	sessions *session.Manager
	auth     *auth.Client
	gigs     *gigs.Repository
	profiles *profile.Store
}

func main() {
	// .env is optional; real env always wins
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to config YAML file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gigctl: load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging, os.Stderr)
	gigapi.SetLogger(logger)

	ctx := context.Background()

	database, err := db.New(ctx, cfg.SessionPath)
	if err != nil {
		logger.Error("open session db", slog.Any("err", err))
		os.Exit(1)
	}
	defer database.Close()

	store, err := session.NewSQLiteStore(ctx, database)
	if err != nil {
		logger.Error("init session store", slog.Any("err", err))
		os.Exit(1)
	}
	sessions := session.NewManager(store)

	client, err := gigapi.NewDefaultClient(cfg.API)
	if err != nil {
		logger.Error("init api client", slog.Any("err", err))
		os.Exit(1)
	}
	defer client.Close()

	a := &app{
		cfg:      cfg,
		log:      logger,
		client:   client,
		sessions: sessions,
		auth:     auth.New(client, sessions, logger),
		gigs:     gigs.New(client, sessions, logger),
		profiles: profile.New(client, sessions, logger),
	}

	if err := a.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "gigctl: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps the error taxonomy to distinct shell exit codes.
func exitCode(err error) int {
	switch apierr.KindOf(err) {
	case apierr.KindValidation:
		return 3
	case apierr.KindAuth:
		return 4
	case apierr.KindNotFound:
		return 5
	default:
		return 1
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.cmdLogin(ctx, args)
	case "logout":
		return a.cmdLogout(ctx, args)
	case "register":
		return a.cmdRegister(ctx, args)
	case "gigs":
		return a.cmdGigs(ctx, args)
	case "gig":
		return a.cmdGig(ctx, args)
	case "create-gig":
		return a.cmdCreateGig(ctx, args)
	case "submit":
		return a.cmdSubmit(ctx, args)
	case "submissions":
		return a.cmdSubmissions(ctx, args)
	case "chat":
		return a.cmdChat(ctx, args)
	case "say":
		return a.cmdSay(ctx, args)
	case "profile":
		return a.cmdProfile(ctx, args)
	case "save-profile":
		return a.cmdSaveProfile(ctx, args)
	case "version":
		fmt.Println("gigctl", version)
		return nil
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func parseRole(s string) (session.Role, error) {
	switch s {
	case "worker":
		return session.RoleWorker, nil
	case "business":
		return session.RoleBusiness, nil
	default:
		return "", fmt.Errorf("role must be worker or business, got %q", s)
	}
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	roleFlag := fs.String("role", "worker", "actor role")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	_ = fs.Parse(args)

	role, err := parseRole(*roleFlag)
	if err != nil {
		return err
	}

	if role == session.RoleBusiness {
		err = a.auth.LoginBusiness(ctx, *email, *password)
	} else {
		err = a.auth.LoginWorker(ctx, *email, *password)
	}
	if err != nil {
		return err
	}

	fmt.Printf("logged in as %s\n", role)
	return nil
}

func (a *app) cmdLogout(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	roleFlag := fs.String("role", "worker", "actor role")
	_ = fs.Parse(args)

	role, err := parseRole(*roleFlag)
	if err != nil {
		return err
	}
	if err := a.auth.Logout(ctx, role); err != nil {
		return err
	}
	fmt.Printf("logged out %s\n", role)
	return nil
}

func (a *app) cmdRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	roleFlag := fs.String("role", "worker", "actor role")
	name := fs.String("name", "", "username or company name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	_ = fs.Parse(args)

	role, err := parseRole(*roleFlag)
	if err != nil {
		return err
	}

	if role == session.RoleBusiness {
		err = a.auth.RegisterBusiness(ctx, models.BusinessRegistration{Name: *name, Email: *email, Password: *password})
	} else {
		err = a.auth.RegisterWorker(ctx, models.WorkerRegistration{Username: *name, Email: *email, Password: *password})
	}
	if err != nil {
		return err
	}

	fmt.Printf("registered %s %q\n", role, *name)
	return nil
}

func (a *app) cmdGigs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("gigs", flag.ExitOnError)
	company := fs.String("company", "", "limit to one company's gigs")
	_ = fs.Parse(args)

	var (
		list []models.Gig
		err  error
	)
	if *company != "" {
		list, err = a.gigs.ListForCompany(ctx, *company)
	} else {
		list, err = a.gigs.ListAll(ctx)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tCOMPANY\tBOUNTY\tDEADLINE")
	for _, g := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\n", g.ID, g.Title, g.Company, g.Bounty, g.Deadline.Format("2006-01-02"))
	}
	return w.Flush()
}

func (a *app) cmdGig(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: gigctl gig <gig-id>")
	}

	g, err := a.gigs.GetByID(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("%s\n  company: %s\n  bounty: %.2f (%s)\n  deadline: %s\n  contact: %s\n  skills: %s\n\n%s\n",
		g.Title, g.Company, g.Bounty, g.Breakdown, g.Deadline.Format("2006-01-02"), g.Contact,
		strings.Join(g.Skills, ", "), g.Description)
	return nil
}

func (a *app) cmdCreateGig(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create-gig", flag.ExitOnError)
	title := fs.String("title", "", "gig title")
	desc := fs.String("desc", "", "description")
	deadline := fs.String("deadline", "", "deadline, YYYY-MM-DD")
	guidelines := fs.String("guidelines", "", "submission guidelines")
	criteria := fs.String("criteria", "", "evaluation criteria")
	bounty := fs.Float64("bounty", 0, "bounty amount")
	breakdown := fs.String("breakdown", "", "bounty breakdown")
	contact := fs.String("contact", "", "contact email")
	skills := fs.String("skills", "", "comma-separated skills")
	_ = fs.Parse(args)

	var due time.Time
	if *deadline != "" {
		var err error
		due, err = time.Parse("2006-01-02", *deadline)
		if err != nil {
			return fmt.Errorf("parse deadline: %w", err)
		}
	}

	created, err := a.gigs.Create(ctx, models.GigDraft{
		Title:              *title,
		Description:        *desc,
		Deadline:           due,
		Guidelines:         *guidelines,
		EvaluationCriteria: *criteria,
		Bounty:             *bounty,
		Breakdown:          *breakdown,
		Contact:            *contact,
		Skills:             gigs.SplitSkills(*skills),
	})
	if err != nil {
		return err
	}

	fmt.Printf("created gig %s for %s\n", created.ID, created.Company)
	return nil
}

func (a *app) cmdSubmit(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: gigctl submit <gig-id> -link URL [-email E]")
	}
	gigID := args[0]

	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	link := fs.String("link", "", "URL of the completed work")
	email := fs.String("email", "", "contact email for the submission")
	_ = fs.Parse(args[1:])

	w := submissions.New(ctx, a.client, a.sessions, a.log, gigID)
	if err := w.OpenDraft(ctx); err != nil {
		if w.NeedsLogin() {
			return fmt.Errorf("run 'gigctl login' first: %w", err)
		}
		return err
	}

	created, err := w.Confirm(ctx, submissions.Draft{Link: *link, Email: *email})
	if err != nil {
		if w.NeedsLogin() {
			return fmt.Errorf("session expired, run 'gigctl login' again: %w", err)
		}
		return err
	}

	fmt.Printf("submitted %s as %s\n", created.Link, created.Username)
	return nil
}

func (a *app) cmdSubmissions(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: gigctl submissions <gig-id>")
	}

	subs, err := a.gigs.ListSubmissions(ctx, args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tLINK\tCREATED")
	for _, s := range subs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Username, s.Link, s.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func (a *app) cmdChat(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: gigctl chat <gig-id>")
	}

	thread := chat.NewThread(a.client, a.sessions, a.log, args[0])
	msgs, err := thread.Fetch(ctx)
	if err != nil {
		return err
	}

	for _, m := range msgs {
		fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format("15:04"), m.Username, m.Message)
	}
	return nil
}

func (a *app) cmdSay(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: gigctl say <gig-id> -m TEXT [-role worker|business]")
	}
	gigID := args[0]

	fs := flag.NewFlagSet("say", flag.ExitOnError)
	text := fs.String("m", "", "message text")
	roleFlag := fs.String("role", "worker", "actor role")
	_ = fs.Parse(args[1:])

	role, err := parseRole(*roleFlag)
	if err != nil {
		return err
	}

	thread := chat.NewThread(a.client, a.sessions, a.log, gigID)
	if _, err := thread.Fetch(ctx); err != nil {
		return err
	}
	if _, err := thread.Send(ctx, role, *text); err != nil {
		return err
	}

	for _, m := range thread.Messages() {
		fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format("15:04"), m.Username, m.Message)
	}
	return nil
}

func (a *app) cmdProfile(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: gigctl profile <username>")
	}

	p, err := a.profiles.Fetch(ctx, args[0])
	if apierr.IsNotFound(err) {
		fmt.Printf("%s has no profile yet\n", args[0])
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("%s\n  about: %s\n  skills: %s\n", p.Username, p.About, p.Skills)
	for name, link := range map[string]string{"twitter": p.Twitter, "github": p.Github, "linkedIn": p.LinkedIn} {
		if link != "" {
			fmt.Printf("  %s: %s\n", name, link)
		}
	}
	return nil
}

func (a *app) cmdSaveProfile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("save-profile", flag.ExitOnError)
	about := fs.String("about", "", "about text")
	skills := fs.String("skills", "", "skills text")
	twitter := fs.String("twitter", "", "twitter URL")
	github := fs.String("github", "", "github URL")
	linkedin := fs.String("linkedin", "", "linkedIn URL")
	_ = fs.Parse(args)

	saved, err := a.profiles.Save(ctx, models.Profile{
		About:    *about,
		Skills:   *skills,
		Twitter:  *twitter,
		Github:   *github,
		LinkedIn: *linkedin,
	})
	if err != nil {
		return err
	}

	fmt.Printf("profile saved for %s\n", saved.Username)
	return nil
}
