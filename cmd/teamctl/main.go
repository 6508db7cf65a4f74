// Command teamctl is the CLI entrypoint for the coordination fabric:
// team/task/message CRUD, phase transitions, maintenance sweeps, credit
// grant/consume, and an optional status/report HTTP server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/yethikrishna/levelcode-sub001/internal/config"
	"github.com/yethikrishna/levelcode-sub001/internal/credit"
	"github.com/yethikrishna/levelcode-sub001/internal/discovery"
	"github.com/yethikrishna/levelcode-sub001/internal/fabric"
	"github.com/yethikrishna/levelcode-sub001/internal/hooks"
	"github.com/yethikrishna/levelcode-sub001/internal/maintenance"
	"github.com/yethikrishna/levelcode-sub001/internal/phase"
	"github.com/yethikrishna/levelcode-sub001/internal/report"
	"github.com/yethikrishna/levelcode-sub001/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	root, err := resolveRoot()
	if err != nil {
		fatal(err)
	}
	s := store.New(root)

	switch os.Args[1] {
	case "team-create":
		cmdTeamCreate(s, os.Args[2:])
	case "team-delete":
		cmdTeamDelete(s, os.Args[2:])
	case "team-list":
		cmdTeamList(s)
	case "task-create":
		cmdTaskCreate(s, os.Args[2:])
	case "task-list":
		cmdTaskList(s, os.Args[2:])
	case "message-send":
		cmdMessageSend(s, os.Args[2:])
	case "message-broadcast":
		cmdMessageBroadcast(s, os.Args[2:])
	case "inbox-read":
		cmdInboxRead(s, os.Args[2:])
	case "phase-transition":
		cmdPhaseTransition(s, os.Args[2:])
	case "discover":
		cmdDiscover(s, os.Args[2:])
	case "status", "report":
		cmdReport(s, os.Args[2:])
	case "maintenance":
		cmdMaintenance(s, os.Args[2:])
	case "shutdown-request":
		cmdShutdownRequest(s, os.Args[2:])
	case "plan-request":
		cmdPlanRequest(s, os.Args[2:])
	case "credit-grant":
		cmdCreditGrant(root, os.Args[2:])
	case "credit-consume":
		cmdCreditConsume(root, os.Args[2:])
	case "serve":
		cmdServe(s, os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `teamctl <command> [flags]

commands:
  team-create -name NAME -lead AGENTID
  team-delete -name NAME
  team-list
  task-create -team NAME -id ID -subject SUBJECT
  task-list -team NAME
  message-send -team NAME -to AGENT -from AGENT -text TEXT [-nats-url URL]
  message-broadcast -team NAME -from AGENT -text TEXT [-nats-url URL]
  inbox-read -team NAME -agent AGENT [-clear]
  phase-transition -team NAME -to PHASE
  discover -agent AGENTID
  status -team NAME
  report -team NAME [-format text|json]
  maintenance -team NAME [-stale-locks] [-prune-completed] [-orphan-inboxes] [-integrity] [-archive]
  shutdown-request -team NAME -from AGENT -to AGENT -reason REASON
  plan-request -team NAME -from AGENT -to AGENT -plan TEXT
  credit-grant -user ID -type TYPE -amount N [-description TEXT]
  credit-consume -user ID -amount N
  serve -addr :8080 [-embedded-nats] [-nats-port PORT]`)
}

func resolveRoot() (string, error) {
	if override := os.Getenv("LEVELCODE_CONFIG_ROOT"); override != "" {
		return override, nil
	}
	root, err := config.Root()
	if err != nil {
		return "", err
	}
	bootstrap, err := config.LoadBootstrap(config.DefaultBootstrapPath(root))
	if err != nil {
		return "", err
	}
	if bootstrap.ConfigRoot != "" {
		return bootstrap.ConfigRoot, nil
	}
	return root, nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "teamctl:", err)
	os.Exit(1)
}

func cmdTeamCreate(s *store.Store, args []string) {
	fs := flag.NewFlagSet("team-create", flag.ExitOnError)
	name := fs.String("name", "", "team name")
	lead := fs.String("lead", "", "lead agent id")
	desc := fs.String("description", "", "team description")
	fs.Parse(args)

	cfg := store.TeamConfig{
		Name:        *name,
		Description: *desc,
		CreatedAt:   time.Now().UnixMilli(),
		LeadAgentID: *lead,
		Phase:       store.PhasePlanning,
		Settings:    store.TeamSettings{MaxMembers: 10},
	}
	if err := s.CreateTeam(cfg); err != nil {
		fatal(err)
	}
	s.SetLastActiveTeam(*name)
	fmt.Printf("created team %q\n", *name)
}

func cmdTeamDelete(s *store.Store, args []string) {
	fs := flag.NewFlagSet("team-delete", flag.ExitOnError)
	name := fs.String("name", "", "team name")
	fs.Parse(args)
	if err := s.DeleteTeam(*name); err != nil {
		fatal(err)
	}
	fmt.Printf("deleted team %q\n", *name)
}

func cmdTeamList(s *store.Store) {
	names, err := s.Root().ListTeamNames()
	if err != nil {
		fatal(err)
	}
	for _, n := range names {
		fmt.Println(n)
	}
}

func cmdTaskCreate(s *store.Store, args []string) {
	fs := flag.NewFlagSet("task-create", flag.ExitOnError)
	team := fs.String("team", "", "team name")
	id := fs.String("id", "", "task id")
	subject := fs.String("subject", "", "task subject")
	fs.Parse(args)

	task := store.TeamTask{ID: *id, Subject: *subject, Status: store.TaskPending, Priority: store.PriorityMedium}
	if err := s.CreateTask(*team, task); err != nil {
		fatal(err)
	}
	fmt.Printf("created task %s in team %q\n", *id, *team)
}

func cmdTaskList(s *store.Store, args []string) {
	fs := flag.NewFlagSet("task-list", flag.ExitOnError)
	team := fs.String("team", "", "team name")
	fs.Parse(args)

	tasks, err := s.ListTasks(*team)
	if err != nil {
		fatal(err)
	}
	for _, t := range tasks {
		fmt.Printf("%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Priority, t.Subject)
	}
}

// newFabric builds the messaging layer, attaching a NATS cross-process
// bridge when natsURL is set so each delivery is also published on
// team.<team>.inbox.<agent> for any observing process.
func newFabric(s *store.Store, natsURL string) *fabric.Fabric {
	if natsURL == "" {
		return fabric.New(s, nil)
	}
	bridge, err := fabric.NewNATSBridge(natsURL)
	if err != nil {
		fatal(err)
	}
	return fabric.New(s, bridge)
}

func cmdMessageSend(s *store.Store, args []string) {
	fs := flag.NewFlagSet("message-send", flag.ExitOnError)
	team := fs.String("team", "", "team name")
	to := fs.String("to", "", "recipient agent name")
	from := fs.String("from", "", "sender agent name")
	text := fs.String("text", "", "message text")
	natsURL := fs.String("nats-url", "", "publish deliveries to this NATS server")
	fs.Parse(args)

	f := newFabric(s, *natsURL)
	msg := fabric.ProtocolMessage{Type: fabric.TypeMessage, Timestamp: time.Now().UTC().Format(time.RFC3339Nano), From: *from, To: *to, Text: *text}
	if err := f.SendMessage(*team, *to, msg); err != nil {
		fatal(err)
	}
	fmt.Println("sent")
}

func cmdMessageBroadcast(s *store.Store, args []string) {
	fs := flag.NewFlagSet("message-broadcast", flag.ExitOnError)
	team := fs.String("team", "", "team name")
	from := fs.String("from", "", "sender agent name")
	text := fs.String("text", "", "message text")
	natsURL := fs.String("nats-url", "", "publish deliveries to this NATS server")
	fs.Parse(args)

	f := newFabric(s, *natsURL)
	msg := fabric.ProtocolMessage{Type: fabric.TypeBroadcast, Timestamp: time.Now().UTC().Format(time.RFC3339Nano), From: *from, Text: *text}
	if err := f.Broadcast(*team, msg); err != nil {
		fatal(err)
	}
	fmt.Println("broadcast sent")
}

func cmdInboxRead(s *store.Store, args []string) {
	fs := flag.NewFlagSet("inbox-read", flag.ExitOnError)
	team := fs.String("team", "", "team name")
	agent := fs.String("agent", "", "agent name")
	clear := fs.Bool("clear", false, "clear inbox after reading")
	fs.Parse(args)

	f := newFabric(s, "")
	msgs, skipped, err := f.ReadInbox(*team, *agent)
	if err != nil {
		fatal(err)
	}
	for _, m := range msgs {
		fmt.Printf("[%s] %s: %s\n", m.Type, m.From, m.Text)
	}
	if len(skipped) > 0 {
		fmt.Fprintf(os.Stderr, "warning: %d malformed message(s) skipped\n", len(skipped))
	}
	if *clear {
		if err := f.ClearInbox(*team, *agent); err != nil {
			fatal(err)
		}
	}
}

func cmdPhaseTransition(s *store.Store, args []string) {
	fs := flag.NewFlagSet("phase-transition", flag.ExitOnError)
	team := fs.String("team", "", "team name")
	to := fs.String("to", "", "target phase")
	fs.Parse(args)

	cfg, err := s.LoadTeamConfig(*team)
	if err != nil {
		fatal(err)
	}
	if cfg == nil {
		fatal(fmt.Errorf("team %q not found", *team))
	}
	next, err := phase.TransitionPhase(*cfg, store.Phase(*to))
	if err != nil {
		fatal(err)
	}
	if err := s.SaveTeamConfig(*team, next); err != nil {
		fatal(err)
	}
	fmt.Printf("team %q now in phase %s\n", *team, next.Phase)
}

func cmdDiscover(s *store.Store, args []string) {
	fs := flag.NewFlagSet("discover", flag.ExitOnError)
	agent := fs.String("agent", "", "agent id")
	fs.Parse(args)

	r := discovery.New(s)
	cfg, name, err := r.FindCurrentTeamAndAgent(*agent)
	if err != nil {
		fatal(err)
	}
	if cfg == nil {
		fmt.Println("no team found")
		return
	}
	fmt.Printf("team %q, resolved as %q\n", cfg.Name, name)
}

func cmdReport(s *store.Store, args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	team := fs.String("team", "", "team name")
	format := fs.String("format", "text", "text|json")
	fs.Parse(args)

	rep, err := report.New(s).BuildReport(*team)
	if err != nil {
		fatal(err)
	}
	if rep == nil {
		fatal(fmt.Errorf("team %q not found", *team))
	}
	if *format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			fatal(err)
		}
		return
	}
	fmt.Print(report.RenderText(rep))
}

func cmdMaintenance(s *store.Store, args []string) {
	fs := flag.NewFlagSet("maintenance", flag.ExitOnError)
	team := fs.String("team", "", "team name")
	staleLocks := fs.Bool("stale-locks", false, "sweep stale locks")
	pruneCompleted := fs.Bool("prune-completed", false, "prune completed tasks older than 24h")
	orphanInboxes := fs.Bool("orphan-inboxes", false, "remove orphaned inboxes")
	integrity := fs.Bool("integrity", false, "validate team integrity")
	archive := fs.Bool("archive", false, "archive the team")
	fs.Parse(args)

	m := maintenance.New(s)
	if *staleLocks {
		n, err := m.CleanupStaleLocks(*team, maintenance.DefaultStaleLockAge)
		checkAndReport(err, "removed %d stale lock(s)\n", n)
	}
	if *pruneCompleted {
		n, err := m.PruneCompletedTasks(*team, 24*time.Hour)
		checkAndReport(err, "pruned %d completed task(s)\n", n)
	}
	if *orphanInboxes {
		n, err := m.CleanupOrphanedInboxes(*team)
		checkAndReport(err, "removed %d orphaned inbox(es)\n", n)
	}
	if *integrity {
		issues, err := m.ValidateTeamIntegrity(*team)
		if err != nil {
			fatal(err)
		}
		for _, issue := range issues {
			fmt.Printf("[%s] %s\n", issue.Kind, issue.Detail)
		}
		fmt.Printf("%d issue(s)\n", len(issues))
	}
	if *archive {
		dir, err := m.ArchiveTeam(*team)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("archived to %s\n", dir)
	}
}

func checkAndReport(err error, format string, n int) {
	if err != nil {
		fatal(err)
	}
	fmt.Printf(format, n)
}

func cmdShutdownRequest(s *store.Store, args []string) {
	fs := flag.NewFlagSet("shutdown-request", flag.ExitOnError)
	team := fs.String("team", "", "team name")
	from := fs.String("from", "", "requesting agent name")
	to := fs.String("to", "", "approving agent name")
	reason := fs.String("reason", "", "shutdown reason")
	natsURL := fs.String("nats-url", "", "publish deliveries to this NATS server")
	fs.Parse(args)

	f := newFabric(s, *natsURL)
	msg := fabric.ProtocolMessage{
		Type:      fabric.TypeShutdownRequest,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		RequestID: uuid.NewString(),
		From:      *from,
		Reason:    *reason,
	}
	if err := f.SendMessage(*team, *to, msg); err != nil {
		fatal(err)
	}
	fmt.Printf("shutdown request %s sent\n", msg.RequestID)
}

func cmdPlanRequest(s *store.Store, args []string) {
	fs := flag.NewFlagSet("plan-request", flag.ExitOnError)
	team := fs.String("team", "", "team name")
	from := fs.String("from", "", "requesting agent name")
	to := fs.String("to", "", "reviewing agent name")
	plan := fs.String("plan", "", "plan content")
	natsURL := fs.String("nats-url", "", "publish deliveries to this NATS server")
	fs.Parse(args)

	f := newFabric(s, *natsURL)
	msg := fabric.ProtocolMessage{
		Type:        fabric.TypePlanApprovalRequest,
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
		RequestID:   uuid.NewString(),
		From:        *from,
		PlanContent: *plan,
	}
	if err := f.SendMessage(*team, *to, msg); err != nil {
		fatal(err)
	}
	fmt.Printf("plan approval request %s sent\n", msg.RequestID)
}

func openLedger(root string) (*credit.Ledger, error) {
	dsn := "file:" + filepath.Join(root, "credit.db") + "?_pragma=busy_timeout(5000)"
	lock := credit.NewFileAdvisoryLock(filepath.Join(root, "locks"))
	return credit.Open(dsn, lock, credit.Options{})
}

func cmdCreditGrant(root string, args []string) {
	fs := flag.NewFlagSet("credit-grant", flag.ExitOnError)
	user := fs.String("user", "", "user id")
	org := fs.String("org", "", "org id")
	grantType := fs.String("type", string(credit.TypePurchase), "grant type")
	amount := fs.Float64("amount", 0, "grant amount")
	description := fs.String("description", "", "grant description")
	fs.Parse(args)

	ledger, err := openLedger(root)
	if err != nil {
		fatal(err)
	}
	defer ledger.Close()

	principal := credit.Principal{UserID: *user, OrgID: *org}
	inserted, err := ledger.GrantCredit(context.Background(), principal, credit.GrantType(*grantType), *amount, nil, uuid.NewString(), *description)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("granted=%v\n", inserted)
}

func cmdCreditConsume(root string, args []string) {
	fs := flag.NewFlagSet("credit-consume", flag.ExitOnError)
	user := fs.String("user", "", "user id")
	org := fs.String("org", "", "org id")
	amount := fs.Float64("amount", 0, "amount to consume")
	fs.Parse(args)

	ledger, err := openLedger(root)
	if err != nil {
		fatal(err)
	}
	defer ledger.Close()

	principal := credit.Principal{UserID: *user, OrgID: *org}
	result, err := ledger.Consume(context.Background(), principal, *amount)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("consumed=%.2f fromPurchased=%.2f\n", result.Consumed, result.FromPurchased)
}

func cmdServe(s *store.Store, args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":8080", "listen address")
	embeddedNATS := fs.Bool("embedded-nats", false, "start an embedded NATS broker for the message bridge")
	natsPort := fs.Int("nats-port", 4222, "embedded NATS broker port")
	fs.Parse(args)

	if *embeddedNATS {
		broker, err := fabric.NewEmbeddedBroker(fabric.EmbeddedBrokerConfig{Port: *natsPort}, 5*time.Second)
		if err != nil {
			fatal(err)
		}
		defer broker.Shutdown()
		fmt.Printf("embedded nats broker on %s\n", broker.ClientURL())
	}

	emitter := hooks.New(nil)
	hub := report.NewHub()
	unsubscribe := hub.Attach(emitter)
	defer unsubscribe()

	reporter := report.New(s)
	srv := report.NewServer(reporter)

	mux := http.NewServeMux()
	mux.Handle("/", srv)
	mux.Handle("/hooks/stream", hub)

	fmt.Printf("listening on %s\n", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		fatal(err)
	}
}
