// Package casectl parses operator CLI flags and drives case operations.
package casectl

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	server "github.com/mdproctor/casemgmt/internal/casemgmt/app"
	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/casefile"
	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/caseinstance"
	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/comment"
	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/dynamic"
	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/role"
	"github.com/mdproctor/casemgmt/internal/casemgmt/service"
	entrypoint "github.com/mdproctor/casemgmt/internal/platform/cmd"
	platformgrpc "github.com/mdproctor/casemgmt/internal/platform/grpc"
)

// Config holds casectl command configuration.
type Config struct {
	DBPath         string        `env:"CASEMGMT_DB_PATH"`
	DefinitionsDir string        `env:"CASEMGMT_DEFINITIONS_DIR"`
	Addr           string        `env:"CASEMGMT_ADDR"        envDefault:"localhost:8080"`
	Timeout        time.Duration `env:"CASEMGMT_CTL_TIMEOUT" envDefault:"10s"`

	// Args holds the subcommand and its arguments after flag parsing.
	Args []string
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the case store database")
	fs.StringVar(&cfg.DefinitionsDir, "definitions", cfg.DefinitionsDir, "directory of case definition deployment files")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "case management daemon address (health subcommand)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "timeout per operation")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "casemgmt.db")
	}
	if strings.TrimSpace(cfg.DefinitionsDir) == "" {
		cfg.DefinitionsDir = "definitions"
	}
	cfg.Args = fs.Args()
	return cfg, nil
}

const usage = `usage: casectl [flags] <subcommand> [args]

subcommands:
  start -deployment <id> -definition <id> [-data name=value]...
  get <case-id> [-file] [-roles] [-stages] [-milestones]
  list [-page-size n] [-page-token token]
  cancel <case-id>
  close <case-id> [-author who] [-comment text]
  destroy <case-id>
  file get <case-id>
  file put <case-id> <name> <value>
  file rm <case-id> <name>...
  assign <case-id> <role> <user:id|group:id>
  unassign <case-id> <role> <user:id|group:id>
  roles <case-id>
  comment add <case-id> <author> <text>
  comment update <case-id> <comment-id> <author> <text>
  comment rm <case-id> <comment-id>
  comment list <case-id> [-sort date|date_desc|author] [-page n] [-page-size n]
  task <case-id> -name <task> [-actor id]... [-group id]... [-description text] [-data name=value]... [-instance id] [-stage id]
  subprocess <case-id> <process-id> [-data name=value]... [-instance id] [-stage id]
  fragment <case-id> <name> [-data name=value]... [-instance id] [-stage id]
  health`

// Run executes the casectl subcommand.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if len(cfg.Args) == 0 {
		fmt.Fprintln(errOut, usage)
		return errors.New("subcommand is required")
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	name, rest := cfg.Args[0], cfg.Args[1:]
	if name == "health" {
		return runHealth(ctx, cfg, out, errOut)
	}

	svc, closeSvc, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSvc()

	switch name {
	case "start":
		return runStart(ctx, svc, rest, out)
	case "get":
		return runGet(ctx, svc, rest, out)
	case "list":
		return runList(ctx, svc, rest, out)
	case "cancel":
		return runCancel(ctx, svc, rest, out)
	case "close":
		return runClose(ctx, svc, rest, out)
	case "destroy":
		return runDestroy(ctx, svc, rest, out)
	case "file":
		return runFile(ctx, svc, rest, out)
	case "assign":
		return runAssign(ctx, svc, rest, out)
	case "unassign":
		return runUnassign(ctx, svc, rest, out)
	case "roles":
		return runRoles(ctx, svc, rest, out)
	case "comment":
		return runComment(ctx, svc, rest, out)
	case "task":
		return runTask(ctx, svc, rest, out)
	case "subprocess":
		return runSubprocess(ctx, svc, rest, out)
	case "fragment":
		return runFragment(ctx, svc, rest, out)
	default:
		fmt.Fprintln(errOut, usage)
		return fmt.Errorf("unknown subcommand %q", name)
	}
}

func openService(ctx context.Context, cfg Config) (*service.Service, func(), error) {
	svc, store, err := server.OpenRuntime(ctx, cfg.DBPath, cfg.DefinitionsDir)
	if err != nil {
		return nil, nil, err
	}
	return svc, func() { _ = store.Close() }, nil
}

func runHealth(ctx context.Context, cfg Config, out, errOut io.Writer) error {
	logf := func(format string, args ...any) {
		fmt.Fprintf(errOut, format+"\n", args...)
	}
	conn, err := platformgrpc.DialWithHealth(ctx, nil, cfg.Addr, cfg.Timeout, logf, platformgrpc.DefaultClientDialOptions()...)
	if err != nil {
		return err
	}
	defer conn.Close()
	fmt.Fprintf(out, "%s: serving\n", cfg.Addr)
	return nil
}

func runStart(ctx context.Context, svc *service.Service, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	var deployment, defID string
	var data dataFlags
	fs.StringVar(&deployment, "deployment", "", "deployment id")
	fs.StringVar(&defID, "definition", "", "case definition id")
	fs.Var(&data, "data", "initial case file value as name=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	file := casefile.New()
	for name, value := range data.values() {
		file.Set(name, parseFileValue(value))
	}
	caseID, err := svc.StartCase(ctx, deployment, defID, file)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, caseID)
	return nil
}

func runGet(ctx context.Context, svc *service.Service, args []string, out io.Writer) error {
	caseID, rest, err := popArg(args, "case id")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	var opts caseinstance.FetchOptions
	fs.BoolVar(&opts.WithFile, "file", false, "include the case file")
	fs.BoolVar(&opts.WithRoles, "roles", false, "include role assignments")
	fs.BoolVar(&opts.WithStages, "stages", false, "include stages")
	fs.BoolVar(&opts.WithMilestones, "milestones", false, "include milestones")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	snapshot, err := svc.GetCase(ctx, caseID, opts)
	if err != nil {
		return err
	}
	printSnapshot(out, snapshot)
	return nil
}

func runList(ctx context.Context, svc *service.Service, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	var pageSize int
	var pageToken string
	fs.IntVar(&pageSize, "page-size", 0, "maximum cases per page")
	fs.StringVar(&pageToken, "page-token", "", "page token from a previous list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	page, err := svc.ListCases(ctx, pageSize, pageToken)
	if err != nil {
		return err
	}
	for _, rec := range page.Cases {
		fmt.Fprintf(out, "%s\t%s\t%s/%s\n", rec.ID, rec.State, rec.DeploymentID, rec.DefinitionID)
	}
	if page.NextPageToken != "" {
		fmt.Fprintf(out, "next page token: %s\n", page.NextPageToken)
	}
	return nil
}

func runCancel(ctx context.Context, svc *service.Service, args []string, out io.Writer) error {
	caseID, _, err := popArg(args, "case id")
	if err != nil {
		return err
	}
	report, err := svc.CancelCase(ctx, caseID)
	if err != nil {
		return err
	}
	printStopReport(out, caseID, "cancelled", report)
	return nil
}

func runClose(ctx context.Context, svc *service.Service, args []string, out io.Writer) error {
	caseID, rest, err := popArg(args, "case id")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("close", flag.ContinueOnError)
	var author, closingComment string
	fs.StringVar(&author, "author", "", "closing comment author")
	fs.StringVar(&closingComment, "comment", "", "closing comment text")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	report, err := svc.CloseCase(ctx, caseID, author, closingComment)
	if err != nil {
		return err
	}
	printStopReport(out, caseID, "closed", report)
	return nil
}

func runDestroy(ctx context.Context, svc *service.Service, args []string, out io.Writer) error {
	caseID, _, err := popArg(args, "case id")
	if err != nil {
		return err
	}
	report, err := svc.DestroyCase(ctx, caseID)
	if err != nil {
		return err
	}
	printStopReport(out, caseID, "destroyed", report)
	return nil
}

func runFile(ctx context.Context, svc *service.Service, args []string, out io.Writer) error {
	verb, rest, err := popArg(args, "file subcommand (get, put, rm)")
	if err != nil {
		return err
	}
	caseID, rest, err := popArg(rest, "case id")
	if err != nil {
		return err
	}
	switch verb {
	case "get":
		file, err := svc.GetCaseFile(ctx, caseID)
		if err != nil {
			return err
		}
		for _, name := range file.Names() {
			value, _ := file.Get(name)
			fmt.Fprintf(out, "%s\t%s\n", name, value.Render())
		}
		return nil
	case "put":
		name, rest, err := popArg(rest, "value name")
		if err != nil {
			return err
		}
		raw, _, err := popArg(rest, "value")
		if err != nil {
			return err
		}
		return svc.PutCaseFileValue(ctx, caseID, name, parseFileValue(raw))
	case "rm":
		if len(rest) == 0 {
			return errors.New("value name is required")
		}
		return svc.RemoveCaseFileValues(ctx, caseID, rest)
	default:
		return fmt.Errorf("unknown file subcommand %q", verb)
	}
}

func runAssign(ctx context.Context, svc *service.Service, args []string, out io.Writer) error {
	caseID, roleName, entity, err := parseRoleArgs(args)
	if err != nil {
		return err
	}
	if err := svc.AssignToCaseRole(ctx, caseID, roleName, entity); err != nil {
		return err
	}
	fmt.Fprintf(out, "assigned %s:%s to %s on %s\n", entity.Type, entity.ID, roleName, caseID)
	return nil
}

func runUnassign(ctx context.Context, svc *service.Service, args []string, out io.Writer) error {
	caseID, roleName, entity, err := parseRoleArgs(args)
	if err != nil {
		return err
	}
	if err := svc.RemoveFromCaseRole(ctx, caseID, roleName, entity); err != nil {
		return err
	}
	fmt.Fprintf(out, "removed %s:%s from %s on %s\n", entity.Type, entity.ID, roleName, caseID)
	return nil
}

func runRoles(ctx context.Context, svc *service.Service, args []string, out io.Writer) error {
	caseID, _, err := popArg(args, "case id")
	if err != nil {
		return err
	}
	assignments, err := svc.CaseRoleAssignments(ctx, caseID)
	if err != nil {
		return err
	}
	for _, assignment := range assignments {
		entities := make([]string, 0, len(assignment.Entities))
		for _, entity := range assignment.Entities {
			entities = append(entities, fmt.Sprintf("%s:%s", entity.Type, entity.ID))
		}
		fmt.Fprintf(out, "%s\t%s\n", assignment.Role, strings.Join(entities, ", "))
	}
	return nil
}

func runComment(ctx context.Context, svc *service.Service, args []string, out io.Writer) error {
	verb, rest, err := popArg(args, "comment subcommand (add, update, rm, list)")
	if err != nil {
		return err
	}
	caseID, rest, err := popArg(rest, "case id")
	if err != nil {
		return err
	}
	switch verb {
	case "add":
		author, rest, err := popArg(rest, "author")
		if err != nil {
			return err
		}
		text, _, err := popArg(rest, "text")
		if err != nil {
			return err
		}
		commentID, err := svc.AddCaseComment(ctx, caseID, author, text)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, commentID)
		return nil
	case "update":
		commentID, rest, err := popArg(rest, "comment id")
		if err != nil {
			return err
		}
		author, rest, err := popArg(rest, "author")
		if err != nil {
			return err
		}
		text, _, err := popArg(rest, "text")
		if err != nil {
			return err
		}
		return svc.UpdateCaseComment(ctx, caseID, commentID, author, text)
	case "rm":
		commentID, _, err := popArg(rest, "comment id")
		if err != nil {
			return err
		}
		return svc.RemoveCaseComment(ctx, caseID, commentID)
	case "list":
		fs := flag.NewFlagSet("comment list", flag.ContinueOnError)
		var sortBy string
		var page, pageSize int
		fs.StringVar(&sortBy, "sort", "", "sort order (date, date_desc, author)")
		fs.IntVar(&page, "page", 0, "zero-indexed page")
		fs.IntVar(&pageSize, "page-size", 0, "comments per page")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		comments, err := svc.CaseComments(ctx, caseID, comment.ParseSortBy(sortBy), page, pageSize)
		if err != nil {
			return err
		}
		for _, c := range comments {
			fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", c.ID, c.CreatedAt.Format(time.RFC3339), c.Author, c.Text)
		}
		return nil
	default:
		return fmt.Errorf("unknown comment subcommand %q", verb)
	}
}

func runTask(ctx context.Context, svc *service.Service, args []string, out io.Writer) error {
	caseID, rest, err := popArg(args, "case id")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("task", flag.ContinueOnError)
	var name, description string
	var actors, groups listFlags
	var data dataFlags
	target := targetFlags(fs)
	fs.StringVar(&name, "name", "", "task name")
	fs.StringVar(&description, "description", "", "task description")
	fs.Var(&actors, "actor", "task actor (repeatable)")
	fs.Var(&groups, "group", "task group (repeatable)")
	fs.Var(&data, "data", "task parameter as name=value (repeatable)")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	spec, err := dynamic.NewHumanTaskSpec(name, strings.Join(actors, ","), strings.Join(groups, ","), description, data.anyValues())
	if err != nil {
		return err
	}
	if err := svc.AddDynamicTask(ctx, caseID, target(), spec); err != nil {
		return err
	}
	fmt.Fprintf(out, "task %s added to %s\n", name, caseID)
	return nil
}

func runSubprocess(ctx context.Context, svc *service.Service, args []string, out io.Writer) error {
	caseID, rest, err := popArg(args, "case id")
	if err != nil {
		return err
	}
	processID, rest, err := popArg(rest, "process id")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("subprocess", flag.ContinueOnError)
	var data dataFlags
	target := targetFlags(fs)
	fs.Var(&data, "data", "subprocess parameter as name=value (repeatable)")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	instanceID, err := svc.AddDynamicSubprocess(ctx, caseID, target(), processID, data.anyValues())
	if err != nil {
		return err
	}
	fmt.Fprintln(out, instanceID)
	return nil
}

func runFragment(ctx context.Context, svc *service.Service, args []string, out io.Writer) error {
	caseID, rest, err := popArg(args, "case id")
	if err != nil {
		return err
	}
	fragment, rest, err := popArg(rest, "fragment name")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("fragment", flag.ContinueOnError)
	var data dataFlags
	target := targetFlags(fs)
	fs.Var(&data, "data", "fragment data as name=value (repeatable)")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if err := svc.TriggerAdHocFragment(ctx, caseID, target(), fragment, data.anyValues()); err != nil {
		return err
	}
	fmt.Fprintf(out, "fragment %s triggered on %s\n", fragment, caseID)
	return nil
}

func targetFlags(fs *flag.FlagSet) func() service.Target {
	var instanceID, stageID string
	fs.StringVar(&instanceID, "instance", "", "target process instance (default: primary)")
	fs.StringVar(&stageID, "stage", "", "target stage within the instance")
	return func() service.Target {
		return service.Target{ProcessInstanceID: instanceID, StageID: stageID}
	}
}

func parseRoleArgs(args []string) (caseID, roleName string, entity role.Entity, err error) {
	caseID, rest, err := popArg(args, "case id")
	if err != nil {
		return "", "", role.Entity{}, err
	}
	roleName, rest, err = popArg(rest, "role name")
	if err != nil {
		return "", "", role.Entity{}, err
	}
	ref, _, err := popArg(rest, "entity (user:id or group:id)")
	if err != nil {
		return "", "", role.Entity{}, err
	}
	entity, err = parseEntity(ref)
	if err != nil {
		return "", "", role.Entity{}, err
	}
	return caseID, roleName, entity, nil
}

func parseEntity(ref string) (role.Entity, error) {
	kind, id, found := strings.Cut(ref, ":")
	if !found {
		return role.Entity{ID: ref, Type: role.EntityTypeUser}, nil
	}
	entityType, ok := role.ParseEntityType(kind)
	if !ok {
		return role.Entity{}, fmt.Errorf("unknown entity type %q (want user or group)", kind)
	}
	return role.Entity{ID: id, Type: entityType}, nil
}

// parseFileValue interprets a CLI value literal: JSON literals become typed
// values, everything else is a string.
func parseFileValue(raw string) casefile.Value {
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return casefile.String(raw)
	}
	switch v := decoded.(type) {
	case string:
		return casefile.String(v)
	case float64:
		return casefile.Number(v)
	case bool:
		return casefile.Bool(v)
	case nil:
		return casefile.String(raw)
	default:
		value, err := casefile.Structured(decoded)
		if err != nil {
			return casefile.String(raw)
		}
		return value
	}
}

func popArg(args []string, what string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, fmt.Errorf("%s is required", what)
	}
	return args[0], args[1:], nil
}

func printSnapshot(out io.Writer, snapshot caseinstance.Snapshot) {
	fmt.Fprintf(out, "case: %s\n", snapshot.CaseID)
	fmt.Fprintf(out, "definition: %s/%s\n", snapshot.DeploymentID, snapshot.DefinitionID)
	fmt.Fprintf(out, "state: %s\n", snapshot.State)
	fmt.Fprintf(out, "primary instance: %s\n", snapshot.PrimaryProcessInstanceID)
	for _, id := range snapshot.SecondaryProcessInstanceIDs {
		fmt.Fprintf(out, "secondary instance: %s\n", id)
	}
	if snapshot.File != nil {
		for _, name := range snapshot.File.Names() {
			value, _ := snapshot.File.Get(name)
			fmt.Fprintf(out, "file %s = %s\n", name, value.Render())
		}
	}
	for _, assignment := range snapshot.Roles {
		entities := make([]string, 0, len(assignment.Entities))
		for _, entity := range assignment.Entities {
			entities = append(entities, fmt.Sprintf("%s:%s", entity.Type, entity.ID))
		}
		fmt.Fprintf(out, "role %s = %s\n", assignment.Role, strings.Join(entities, ", "))
	}
	for _, stage := range snapshot.Stages {
		fmt.Fprintf(out, "stage %s active=%v\n", stage.ID, stage.Active)
	}
	for _, milestone := range snapshot.Milestones {
		fmt.Fprintf(out, "milestone %s (%s)\n", milestone.ID, milestone.Name)
	}
}

func printStopReport(out io.Writer, caseID, verb string, report service.StopReport) {
	fmt.Fprintf(out, "%s %s\n", caseID, verb)
	for _, id := range report.Stopped {
		fmt.Fprintf(out, "stopped %s\n", id)
	}
	for _, failure := range report.Failed {
		fmt.Fprintf(out, "failed to stop %s: %v\n", failure.InstanceID, failure.Err)
	}
}

// listFlags collects a repeatable string flag.
type listFlags []string

func (f *listFlags) String() string { return strings.Join(*f, ",") }

func (f *listFlags) Set(value string) error {
	*f = append(*f, value)
	return nil
}

// dataFlags collects repeatable name=value pairs.
type dataFlags struct {
	pairs [][2]string
}

func (f *dataFlags) String() string {
	parts := make([]string, 0, len(f.pairs))
	for _, pair := range f.pairs {
		parts = append(parts, pair[0]+"="+pair[1])
	}
	return strings.Join(parts, ",")
}

func (f *dataFlags) Set(value string) error {
	name, raw, found := strings.Cut(value, "=")
	if !found || strings.TrimSpace(name) == "" {
		return fmt.Errorf("want name=value, got %q", value)
	}
	f.pairs = append(f.pairs, [2]string{name, raw})
	return nil
}

func (f *dataFlags) values() map[string]string {
	values := make(map[string]string, len(f.pairs))
	for _, pair := range f.pairs {
		values[pair[0]] = pair[1]
	}
	return values
}

func (f *dataFlags) anyValues() map[string]any {
	values := make(map[string]any, len(f.pairs))
	for _, pair := range f.pairs {
		var decoded any
		if err := json.Unmarshal([]byte(pair[1]), &decoded); err != nil || decoded == nil {
			values[pair[0]] = pair[1]
			continue
		}
		if s, ok := decoded.(string); ok {
			values[pair[0]] = s
			continue
		}
		values[pair[0]] = decoded
	}
	return values
}
