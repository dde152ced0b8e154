package experiment_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/ljmetad/internal/config"
	"github.com/san-kum/ljmetad/internal/dynamo"
	"github.com/san-kum/ljmetad/internal/experiment"
	"github.com/san-kum/ljmetad/internal/plumed"
	"github.com/san-kum/ljmetad/internal/trajectory"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func shortMetad() *config.Config {
	cfg := config.GetPreset("lj7-metad")
	cfg.MD.Steps = 1000
	cfg.MD.Stride = 10
	cfg.Plumed.Directives[2] = "mtd: METAD ARG=c1.moment-2,c1.moment-3 SIGMA=0.05,0.05 HEIGHT=0.03 PACE=100 BIASFACTOR=5 FILE=HILLS"
	return cfg
}

var _ = Describe("Pipeline", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("rejects an invalid configuration", func() {
		cfg := config.DefaultConfig()
		cfg.MD.Stride = 0
		_, err := experiment.New(cfg, quiet)
		Expect(errors.Is(err, dynamo.ErrConfiguration)).To(BeTrue())
	})

	Describe("an unbiased constant-energy run", func() {
		var res *experiment.RunResult

		BeforeEach(func() {
			p, err := experiment.New(config.GetPreset("nve"), quiet)
			Expect(err).NotTo(HaveOccurred())
			res, err = p.Forward(ctx, experiment.RunOptions{Dir: GinkgoT().TempDir()})
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(res.Store.Close)
		})

		It("records every step", func() {
			Expect(res.Frames).To(Equal(101))
			Expect(res.Store.Len()).To(Equal(101))
			Expect(res.Thermo).To(HaveLen(101))
		})

		It("conserves energy", func() {
			Expect(res.EnergyDrift).To(BeNumerically("<", 1e-4))
			Expect(res.Metrics["energy_drift"]).To(BeNumerically("<", 1e-4))
		})

		It("keeps every particle in its plane", func() {
			Expect(res.Metrics["plane_deviation"]).To(BeNumerically("<", 1e-12))
			Expect(res.Metrics["stability"]).To(Equal(1.0))
		})
	})

	Describe("a metadynamics study", func() {
		var (
			p      *experiment.Pipeline
			cfg    *config.Config
			runDir string
			res    *experiment.RunResult
		)

		BeforeEach(func() {
			var err error
			cfg = shortMetad()
			runDir = GinkgoT().TempDir()
			cfg.FES.Hills = filepath.Join(runDir, "HILLS")
			cfg.FES.Outfile = filepath.Join(runDir, "fes.dat")
			cfg.FES.Bins = []int{50, 50}
			cfg.FES.Tool = "sum_hills"

			p, err = experiment.New(cfg, quiet)
			Expect(err).NotTo(HaveOccurred())
			res, err = p.Forward(ctx, experiment.RunOptions{
				Dir:        runDir,
				Trajectory: filepath.Join(runDir, "traj.db"),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Store.Close()).To(Succeed())
		})

		It("deposits one hill per pace after step zero", func() {
			hills, cvs, err := plumed.ReadHills(filepath.Join(runDir, "HILLS"))
			Expect(err).NotTo(HaveOccurred())
			Expect(cvs).To(Equal([]string{"c1.moment-2", "c1.moment-3"}))
			Expect(hills).To(HaveLen(10))
		})

		It("prints a COLVAR row every print stride", func() {
			t, err := plumed.ReadTable(filepath.Join(runDir, "COLVAR"))
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Rows).To(HaveLen(11))
			Expect(t.Fields).To(Equal([]string{"time", "c1.moment-2", "c1.moment-3", "mtd.bias"}))
		})

		It("replays one COLVAR row per recorded frame", func() {
			replayDir := GinkgoT().TempDir()
			out, err := p.ReplayFile(ctx, filepath.Join(runDir, "traj.db"), replayDir, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Frames).To(Equal(101))
			Expect(out.Steps[1]).To(Equal(10))

			replayed, err := plumed.ReadTable(filepath.Join(replayDir, "COLVAR"))
			Expect(err).NotTo(HaveOccurred())
			Expect(replayed.Rows).To(HaveLen(101))

			original, err := plumed.ReadTable(filepath.Join(runDir, "COLVAR"))
			Expect(err).NotTo(HaveOccurred())
			m2 := original.Index("c1.moment-2")
			for k, row := range original.Rows {
				Expect(replayed.Rows[10*k][m2]).To(BeNumerically("~", row[m2], 2e-6))
			}
		})

		It("keeps the written print stride when asked", func() {
			store, err := trajectory.Open(ctx, filepath.Join(runDir, "traj.db"))
			Expect(err).NotTo(HaveOccurred())
			defer store.Close()

			replayDir := GinkgoT().TempDir()
			_, err = p.Replay(ctx, store, replayDir, true)
			Expect(err).NotTo(HaveOccurred())
			replayed, err := plumed.ReadTable(filepath.Join(replayDir, "COLVAR"))
			Expect(err).NotTo(HaveOccurred())
			Expect(replayed.Rows).To(HaveLen(11))
		})

		It("reconstructs the free energy on the requested grid", func() {
			g, err := p.Reconstruct(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(g.Values).To(HaveLen(51))
			Expect(g.Values[0]).To(HaveLen(51))
			Expect(filepath.Join(runDir, "fes.dat")).To(BeAnExistingFile())

			lo, hi := g.Range()
			Expect(lo).To(BeNumerically("<", hi))
		})
	})

	It("fails reconstruction without a hills file", func() {
		cfg := config.DefaultConfig()
		cfg.FES.Hills = filepath.Join(GinkgoT().TempDir(), "HILLS")
		p, err := experiment.New(cfg, quiet)
		Expect(err).NotTo(HaveOccurred())
		_, err = p.Reconstruct(ctx)
		Expect(errors.Is(err, dynamo.ErrIO)).To(BeTrue())
	})
})
