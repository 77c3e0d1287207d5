package cmd

import (
	"github.com/alecthomas/kong"
)

type CLI struct {
	Color      string `help:"Color output: auto, always, never." enum:"auto,always,never" default:"auto"`
	JSON       bool   `help:"JSON output to stdout; disables colors."`
	Verbose    bool   `help:"Enable debug logging."`
	SaveTokens bool   `help:"Store OAuth tokens in the OS keychain and reuse them."`
	Proxies    string `help:"Comma-separated proxy URLs." env:"JOBPILOT_PROXIES"`

	VersionFlag kong.VersionFlag `help:"Print version."`

	FetchJobs           FetchJobsCmd           `cmd:"" name:"fetch_jobs" help:"Fetch new jobs and write them to CSV."`
	GradeJobs           GradeJobsCmd           `cmd:"" name:"grade_jobs" help:"Score fetched jobs against the profile."`
	FetchAndGradeJobs   FetchAndGradeJobsCmd   `cmd:"" name:"fetch_and_grade_jobs" help:"Fetch then grade in one step."`
	PrepareApplications PrepareApplicationsCmd `cmd:"" name:"prepare_applications" help:"Write cover letters and interview prep for high-scoring jobs."`
	MainPipeline        MainPipelineCmd        `cmd:"" name:"main_pipeline" help:"Run fetch, grade and apply in sequence."`
	Schedule            ScheduleCmd            `cmd:"" help:"Run the full pipeline on a cron schedule."`
	Show                ShowCmd                `cmd:"" help:"Print a fetched or graded CSV."`
	Seen                SeenCmd                `cmd:"" help:"Deduplication store utilities."`
	Auth                AuthCmd                `cmd:"" help:"Upwork authorization."`
	Config              ConfigCmd              `cmd:"" help:"Manage configuration."`
	Proxy               ProxiesCmd             `cmd:"" name:"proxies" help:"Proxy utilities."`
	Version             VersionCmd             `cmd:"" help:"Print version."`
}

func NewCLI() *CLI {
	return &CLI{}
}
