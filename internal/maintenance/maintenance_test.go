package maintenance_test

import (
	"context"
	"errors"
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/skaphos/dotkeeper/internal/maintenance"
)

type recordingExecutor struct {
	calls [][]string
	fail  map[string]error
}

func (r *recordingExecutor) Run(_ context.Context, _, _ io.Writer, argv ...string) error {
	r.calls = append(r.calls, argv)
	return r.fail[strings.Join(argv, " ")]
}

var _ = Describe("Step", func() {
	It("escalates root steps through sudo", func() {
		step := maintenance.Step{Mode: maintenance.ModeRoot, Script: "/opt/update.sh", Args: []string{"-y"}}
		Expect(step.Command()).To(Equal([]string{"sudo", "--", "/opt/update.sh", "-y"}))
		Expect(step.DisplayName()).To(Equal("update.sh"))
	})

	It("runs user steps directly", func() {
		step := maintenance.Step{Name: "fonts", Script: "fc-cache"}
		Expect(step.Command()).To(Equal([]string{"fc-cache"}))
		Expect(step.Escalates()).To(BeFalse())
	})

	It("validates mode and script", func() {
		Expect(maintenance.Step{Script: "x", Mode: "admin"}.Validate()).To(HaveOccurred())
		Expect(maintenance.Step{Mode: maintenance.ModeUser}.Validate()).To(HaveOccurred())
		Expect(maintenance.Step{Script: "x"}.Validate()).To(Succeed())
	})
})

var _ = Describe("Sequencer", func() {
	var (
		exec  *recordingExecutor
		seq   *maintenance.Sequencer
		steps []maintenance.Step
	)

	BeforeEach(func() {
		exec = &recordingExecutor{fail: map[string]error{}}
		seq = &maintenance.Sequencer{Exec: exec, Logger: zerolog.Nop()}
		steps = []maintenance.Step{
			{Name: "packages", Mode: maintenance.ModeRoot, Script: "/opt/pkg.sh"},
			{Name: "fonts", Script: "/opt/fonts.sh"},
			{Name: "shell-plugins", Script: "/opt/plugins.sh"},
		}
	})

	It("runs every step in order", func() {
		results, tally := seq.Run(context.Background(), steps)
		Expect(tally).To(Equal(maintenance.Tally{OK: 3}))
		Expect(results).To(HaveLen(3))
		Expect(exec.calls).To(Equal([][]string{
			{"sudo", "--", "/opt/pkg.sh"},
			{"/opt/fonts.sh"},
			{"/opt/plugins.sh"},
		}))
	})

	It("keeps going after a failed step", func() {
		exec.fail["/opt/fonts.sh"] = errors.New("boom")
		results, tally := seq.Run(context.Background(), steps)
		Expect(tally).To(Equal(maintenance.Tally{OK: 2, Failed: 1}))
		Expect(results[1].Status).To(Equal(maintenance.StatusFailed))
		Expect(results[1].Error).To(ContainSubstring("boom"))
		Expect(results[1].ExitCode).To(Equal(-1))
		Expect(results[2].Status).To(Equal(maintenance.StatusOK))
	})

	It("skips steps matching a glob", func() {
		seq.Skip = []string{"shell-*", "/opt/pkg*"}
		results, tally := seq.Run(context.Background(), steps)
		Expect(tally).To(Equal(maintenance.Tally{OK: 1, Skipped: 2}))
		Expect(results[0].Status).To(Equal(maintenance.StatusSkipped))
		Expect(exec.calls).To(Equal([][]string{{"/opt/fonts.sh"}}))
		Expect(seq.NeedsEscalation(steps)).To(BeFalse())
	})

	It("reports escalation when a root step will run", func() {
		Expect(seq.NeedsEscalation(steps)).To(BeTrue())
	})

	It("skips remaining steps once cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, tally := seq.Run(ctx, steps)
		Expect(tally.Skipped).To(Equal(3))
		Expect(exec.calls).To(BeEmpty())
	})
})

var _ = Describe("ExecExecutor", func() {
	It("surfaces the exit code of a failing command", func() {
		seq := &maintenance.Sequencer{Logger: zerolog.Nop()}
		results, tally := seq.Run(context.Background(), []maintenance.Step{{Script: "sh", Args: []string{"-c", "echo nope >&2; exit 3"}}})
		Expect(tally.Failed).To(Equal(1))
		Expect(results[0].ExitCode).To(Equal(3))
		Expect(results[0].Error).To(ContainSubstring("nope"))
	})

	It("rejects an empty command", func() {
		Expect(maintenance.ExecExecutor{}.Run(context.Background(), io.Discard, io.Discard)).To(HaveOccurred())
	})
})
