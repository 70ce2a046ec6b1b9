package experiment

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/phylogam/internal/config"
	"github.com/san-kum/phylogam/internal/gam"
	"github.com/san-kum/phylogam/internal/phylo"
	"github.com/san-kum/phylogam/internal/sim"
)

func withheldMeans(res *Result, model string) [][]float64 {
	var out [][]float64
	pred := res.Predictions[model]
	for _, sp := range res.Sim.Withheld {
		rows := pred.ForSpecies(res.Sim.Data.Species[sp])
		means := make([]float64, len(rows))
		for i, r := range rows {
			means[i] = r.Mean
		}
		out = append(out, means)
	}
	return out
}

var _ = Describe("Experiment", func() {
	var (
		ctx context.Context
		cfg *config.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = config.GetPreset("small")
	})

	Describe("Run", func() {
		Context("with the small preset", func() {
			var res *Result

			BeforeEach(func() {
				var err error
				res, err = New(cfg).Run(ctx)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should fit and predict every configured model", func() {
				Expect(res.Models).To(Equal([]string{"phylo", "baseline"}))
				for _, m := range res.Models {
					Expect(res.Fits).To(HaveKey(m))
					Expect(res.Predictions[m].Rows).To(HaveLen(cfg.Species * cfg.Times))
				}
			})

			It("should score each model on each subset", func() {
				Expect(res.Scores).To(HaveLen(len(res.Models) * len(Subsets)))

				withheld := res.Score("phylo", SubsetWithheld)
				Expect(withheld.Rows).To(Equal(cfg.Withheld * cfg.Times))
				Expect(withheld.CRPS).To(BeNumerically(">", 0))

				forecast := res.Score("baseline", SubsetForecast)
				Expect(forecast.Rows).To(Equal((cfg.Species - cfg.Withheld) * cfg.Holdout))

				all := res.Score("phylo", SubsetAll)
				Expect(all.Rows).To(Equal(cfg.Species * cfg.Times))
				Expect(all.Coverage).To(BeNumerically(">=", 0))
				Expect(all.Coverage).To(BeNumerically("<=", 1))
			})

			It("should give information-free species identical baseline trajectories", func() {
				means := withheldMeans(res, "baseline")
				Expect(means).To(HaveLen(2))
				for t := range means[0] {
					Expect(means[0][t]).To(BeNumerically("~", means[1][t], 1e-10))
				}
			})

			It("should give information-free species distinct phylogenetic trajectories", func() {
				means := withheldMeans(res, "phylo")
				maxDiff := 0.0
				for t := range means[0] {
					maxDiff = math.Max(maxDiff, math.Abs(means[0][t]-means[1][t]))
				}
				Expect(maxDiff).To(BeNumerically(">", 1e-8))
			})

			It("should name a winner on the withheld subset", func() {
				Expect(res.Models).To(ContainElement(res.Winner(SubsetWithheld)))
			})
		})

		It("should reproduce point predictions for the same seed", func() {
			a, err := New(cfg).Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			b, err := New(cfg.Clone()).Run(ctx)
			Expect(err).NotTo(HaveOccurred())

			for _, m := range a.Models {
				Expect(a.Predictions[m].Means()).To(Equal(b.Predictions[m].Means()))
			}
		})

		It("should use a tree loaded from a Newick file", func() {
			tree, err := phylo.ParseNewick("(((sp1:0.3,sp2:0.3):0.4,sp3:0.7):0.2,((sp4:0.5,sp5:0.5):0.2,sp6:0.7):0.2);")
			Expect(err).NotTo(HaveOccurred())
			path := filepath.Join(GinkgoT().TempDir(), "tree.nwk")
			Expect(os.WriteFile(path, []byte(tree.Newick()), 0644)).To(Succeed())

			cfg.TreeFile = path
			res, err := New(cfg).Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Sim.Data.Species).To(Equal([]string{"sp1", "sp2", "sp3", "sp4", "sp5", "sp6"}))
		})

		It("should reject a Newick file with duplicate leaf labels", func() {
			path := filepath.Join(GinkgoT().TempDir(), "dup.nwk")
			nwk := "(((a:0.3,a:0.3):0.4,b:0.7):0.2,((c:0.5,d:0.5):0.2,e:0.7):0.2);"
			Expect(os.WriteFile(path, []byte(nwk), 0644)).To(Succeed())

			cfg.TreeFile = path
			cfg.WithheldSpecies = []int{0, 3}
			_, err := New(cfg).Run(ctx)
			Expect(err).To(MatchError(phylo.ErrNewick))
		})

		It("should reject an invalid config", func() {
			cfg.Holdout = cfg.Times
			_, err := New(cfg).Run(ctx)
			Expect(err).To(MatchError(sim.ErrInvalidConfig))
		})

		It("should reject an unknown model", func() {
			cfg.Fit.Models = []string{"phylo", "nope"}
			_, err := New(cfg).Run(ctx)
			Expect(err).To(MatchError(ContainSubstring("unknown model: nope")))
		})

		It("should stop on a cancelled context", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := New(cfg).Run(cctx)
			Expect(err).To(MatchError(context.Canceled))
		})
	})

	Describe("Registry", func() {
		It("should list the built-in models", func() {
			Expect(NewRegistry().ListModels()).To(Equal([]string{"baseline", "phylo"}))
		})

		It("should accept custom factories", func() {
			r := NewRegistry()
			r.Register("smooth-only", func(data *sim.Dataset, _ *phylo.Tree, fc config.FitConfig) (*gam.Model, error) {
				s, err := gam.NewSmooth(1, float64(data.NumTimes()), fc.Basis, 2)
				if err != nil {
					return nil, err
				}
				return gam.NewModel("smooth-only", s), nil
			})
			cfg.Fit.Models = []string{"smooth-only"}
			res, err := New(cfg).WithRegistry(r).Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Fits["smooth-only"].TermEDF).To(HaveKey("s(time)"))
		})

		It("should refuse a tree whose leaves do not match the species", func() {
			tree, err := phylo.ParseNewick("((a:1,b:1):1,c:1);")
			Expect(err).NotTo(HaveOccurred())
			data := sim.NewDataset([]string{"a", "c", "b"}, 5)
			_, err = NewRegistry().GetModel("phylo", data, tree, cfg.Fit)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Phylogenetic penalty", func() {
		It("should forecast withheld species better than the baseline", func() {
			if testing.Short() {
				Skip("long experiment skipped in short mode")
			}

			var phyloCRPS, baseCRPS float64
			seeds := []int64{1, 2, 3}
			for _, seed := range seeds {
				c := config.DefaultConfig()
				c.Seed = seed
				res, err := New(c).Run(ctx)
				Expect(err).NotTo(HaveOccurred())
				phyloCRPS += res.Score("phylo", SubsetWithheld).CRPS
				baseCRPS += res.Score("baseline", SubsetWithheld).CRPS
			}
			Expect(phyloCRPS / float64(len(seeds))).To(BeNumerically("<", baseCRPS/float64(len(seeds))))
		})

		It("should win on withheld species at the default configuration", func() {
			if testing.Short() {
				Skip("long experiment skipped in short mode")
			}

			c := config.DefaultConfig()
			Expect(c.Seed).To(Equal(int64(1)))
			Expect(c.Species).To(Equal(12))
			Expect(c.Times).To(Equal(50))
			res, err := New(c).Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Score("phylo", SubsetWithheld).CRPS).To(BeNumerically("<", res.Score("baseline", SubsetWithheld).CRPS))
			Expect(res.Winner(SubsetWithheld)).To(Equal("phylo"))
		})
	})
})
