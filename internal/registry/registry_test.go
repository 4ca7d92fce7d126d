package registry_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/hamed0406/servermonitor/internal/domain"
	"github.com/hamed0406/servermonitor/internal/registry"
	"github.com/hamed0406/servermonitor/internal/repo/memory"
)

var _ = Describe("Registry", func() {
	var (
		ctx   context.Context
		store *memory.Store
		reg   *registry.Registry
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = memory.New()
		reg = registry.New(registry.Options{Store: store, Logger: zap.NewNop()})
	})

	Describe("Add", func() {
		It("should assign increasing ids and start as Unknown", func() {
			a, err := reg.Add(ctx, "A", "http://a.example")
			Expect(err).NotTo(HaveOccurred())
			b, err := reg.Add(ctx, "B", "http://b.example")
			Expect(err).NotTo(HaveOccurred())

			Expect(b).To(BeNumerically(">", a))
			snap := reg.Snapshot()
			Expect(snap).To(HaveLen(2))
			Expect(snap[0].Status).To(Equal(domain.Unknown()))
			Expect(snap[0].LastChecked.IsZero()).To(BeTrue())
		})

		It("should save after every add", func() {
			_, _ = reg.Add(ctx, "A", "http://a.example")
			_, _ = reg.Add(ctx, "B", "http://b.example")

			Expect(store.Saves()).To(Equal(2))
			saved, _ := store.Load(ctx)
			Expect(saved).To(HaveLen(2))
			Expect(saved[1].Name).To(Equal("B"))
		})

		It("should normalize the URL", func() {
			id, err := reg.Add(ctx, "  A  ", "EXAMPLE.com:80/")
			Expect(err).NotTo(HaveOccurred())
			t, ok := reg.Get(id)
			Expect(ok).To(BeTrue())
			Expect(t.Name).To(Equal("A"))
			Expect(t.URL).To(Equal("http://example.com"))
		})

		It("should reject malformed input without creating or saving anything", func() {
			for _, in := range [][2]string{
				{"A", "ftp://files.example"},
				{"A", "http://bad host"},
				{"A", ""},
				{"", "http://a.example"},
			} {
				_, err := reg.Add(ctx, in[0], in[1])
				Expect(errors.Is(err, registry.ErrInvalidTarget)).To(BeTrue(), "input %v", in)
			}
			Expect(reg.Len()).To(Equal(0))
			Expect(store.Saves()).To(Equal(0))
		})

		It("should keep the target when the save fails", func() {
			store.FailWith(errors.New("read-only file system"))

			id, err := reg.Add(ctx, "A", "http://a.example")
			Expect(err).To(HaveOccurred())
			Expect(registry.IsSaveError(err)).To(BeTrue())
			Expect(id).NotTo(BeZero())
			_, ok := reg.Get(id)
			Expect(ok).To(BeTrue())
		})
	})

	Describe("Remove", func() {
		It("should never reuse an id after removal", func() {
			a, _ := reg.Add(ctx, "A", "http://a.example")
			b, _ := reg.Add(ctx, "B", "http://b.example")
			ok, err := reg.Remove(ctx, b)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			c, _ := reg.Add(ctx, "C", "http://c.example")
			Expect(c).NotTo(Equal(b))
			Expect(c).NotTo(Equal(a))
		})

		It("should report false for unknown ids without saving", func() {
			ok, err := reg.Remove(ctx, 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
			Expect(store.Saves()).To(Equal(0))
		})

		It("should keep the remaining order", func() {
			_, _ = reg.Add(ctx, "A", "http://a.example")
			b, _ := reg.Add(ctx, "B", "http://b.example")
			_, _ = reg.Add(ctx, "C", "http://c.example")
			_, _ = reg.Remove(ctx, b)

			snap := reg.Snapshot()
			Expect(snap).To(HaveLen(2))
			Expect(snap[0].Name).To(Equal("A"))
			Expect(snap[1].Name).To(Equal("C"))
		})
	})

	Describe("Update", func() {
		It("should reset the status when the URL changes", func() {
			id, _ := reg.Add(ctx, "A", "http://a.example")
			reg.ApplyStatus(id, domain.Online(), time.Now())

			Expect(reg.Update(ctx, id, "A2", "http://a.example")).To(Succeed())
			t, _ := reg.Get(id)
			Expect(t.Name).To(Equal("A2"))
			Expect(t.Status).To(Equal(domain.Online()))

			Expect(reg.Update(ctx, id, "A2", "http://other.example")).To(Succeed())
			t, _ = reg.Get(id)
			Expect(t.Status).To(Equal(domain.Unknown()))
			Expect(t.LastChecked.IsZero()).To(BeTrue())
		})

		It("should fail for unknown ids and bad input", func() {
			Expect(reg.Update(ctx, 9, "A", "http://a.example")).To(MatchError(registry.ErrNotFound))
			id, _ := reg.Add(ctx, "A", "http://a.example")
			Expect(errors.Is(reg.Update(ctx, id, "A", "mailto:x"), registry.ErrInvalidTarget)).To(BeTrue())
		})
	})

	Describe("ApplyStatus", func() {
		It("should write status and timestamp together", func() {
			id, _ := reg.Add(ctx, "A", "http://a.example")
			at := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

			Expect(reg.ApplyStatus(id, domain.ErrorCode(500), at)).To(BeTrue())
			t, _ := reg.Get(id)
			Expect(t.Status).To(Equal(domain.ErrorCode(500)))
			Expect(t.LastChecked).To(Equal(at))
		})

		It("should discard results for removed targets", func() {
			a, _ := reg.Add(ctx, "A", "http://a.example")
			b, _ := reg.Add(ctx, "B", "http://b.example")
			_, _ = reg.Remove(ctx, a)

			Expect(reg.ApplyStatus(a, domain.Online(), time.Now())).To(BeFalse())
			snap := reg.Snapshot()
			Expect(snap).To(HaveLen(1))
			Expect(snap[0].ID).To(Equal(b))
			Expect(snap[0].Status).To(Equal(domain.Unknown()))
		})

		It("should let the last completed write win", func() {
			id, _ := reg.Add(ctx, "A", "http://a.example")
			reg.ApplyStatus(id, domain.Online(), time.Unix(20, 0))
			reg.ApplyStatus(id, domain.Offline(), time.Unix(10, 0))

			t, _ := reg.Get(id)
			Expect(t.Status).To(Equal(domain.Offline()))
		})

		It("should not save", func() {
			id, _ := reg.Add(ctx, "A", "http://a.example")
			reg.MarkChecking([]domain.TargetID{id})
			reg.ApplyStatus(id, domain.Online(), time.Now())
			Expect(store.Saves()).To(Equal(1))
		})
	})

	Describe("Snapshot", func() {
		It("should be a copy", func() {
			id, _ := reg.Add(ctx, "A", "http://a.example")
			snap := reg.Snapshot()
			snap[0].Name = "changed"
			t, _ := reg.Get(id)
			Expect(t.Name).To(Equal("A"))
		})

		It("should never pair a status with another update's timestamp", func() {
			ids := make([]domain.TargetID, 5)
			for i := range ids {
				ids[i], _ = reg.Add(ctx, "T", "http://t.example")
			}

			var wg sync.WaitGroup
			stop := make(chan struct{})
			for _, id := range ids {
				wg.Add(1)
				go func(id domain.TargetID) {
					defer wg.Done()
					for k := 1; k <= 2000; k++ {
						reg.ApplyStatus(id, domain.ErrorCode(400+k%100), time.Unix(int64(400+k%100), 0))
					}
				}(id)
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					tmp, _ := reg.Add(ctx, "tmp", "http://tmp.example")
					_, _ = reg.Remove(ctx, tmp)
				}
			}()

			torn := 0
			for i := 0; i < 2000; i++ {
				for _, t := range reg.Snapshot() {
					if t.Status.Kind == domain.StatusError && int64(t.Status.Code) != t.LastChecked.Unix() {
						torn++
					}
				}
			}
			close(stop)
			wg.Wait()
			Expect(torn).To(BeZero())
		})
	})

	Describe("Replace", func() {
		It("should keep loaded ids and continue numbering above them", func() {
			reg.Replace([]domain.Target{
				{ID: 4, Name: "A", URL: "http://a.example", Status: domain.Online()},
				{ID: 9, Name: "B", URL: "http://b.example", Status: domain.Checking()},
			})
			snap := reg.Snapshot()
			Expect(snap[0].ID).To(Equal(domain.TargetID(4)))
			Expect(snap[1].Status).To(Equal(domain.Unknown()))

			id, _ := reg.Add(ctx, "C", "http://c.example")
			Expect(id).To(Equal(domain.TargetID(10)))
		})

		It("should assign fresh ids to missing, duplicate and retired ids", func() {
			a, _ := reg.Add(ctx, "A", "http://a.example")
			b, _ := reg.Add(ctx, "B", "http://b.example")
			_, _ = reg.Remove(ctx, b)

			got := reg.Replace([]domain.Target{
				{ID: a, Name: "A"},
				{ID: b, Name: "B"},
				{ID: 0, Name: "legacy"},
				{ID: a, Name: "dup"},
			})
			Expect(got[0].ID).To(Equal(a))
			seen := map[domain.TargetID]bool{a: true}
			for _, t := range got[1:] {
				Expect(t.ID).To(BeNumerically(">", b))
				Expect(seen[t.ID]).To(BeFalse())
				seen[t.ID] = true
			}
		})
	})

	Describe("Load and Save", func() {
		It("should round-trip through the store", func() {
			_, _ = reg.Add(ctx, "A", "http://a.example")
			_, _ = reg.Add(ctx, "B", "http://b.example")

			other := registry.New(registry.Options{Store: store})
			Expect(other.Load(ctx)).To(Succeed())
			Expect(other.Snapshot()).To(Equal(reg.Snapshot()))
		})

		It("should surface load errors", func() {
			failing := registry.New(registry.Options{Store: failingStore{}})
			Expect(failing.Load(ctx)).To(HaveOccurred())
		})
	})

	It("should summarize statuses", func() {
		a, _ := reg.Add(ctx, "A", "http://a.example")
		b, _ := reg.Add(ctx, "B", "http://b.example")
		c, _ := reg.Add(ctx, "C", "http://c.example")
		_, _ = reg.Add(ctx, "D", "http://d.example")
		reg.ApplyStatus(a, domain.Online(), time.Now())
		reg.ApplyStatus(b, domain.Offline(), time.Now())
		reg.ApplyStatus(c, domain.ErrorCode(503), time.Now())

		Expect(reg.Summary()).To(Equal(domain.Summary{Total: 4, Online: 1, Offline: 1, Error: 1, Pending: 1}))
	})
})

type failingStore struct{}

func (failingStore) Load(context.Context) ([]domain.Target, error) {
	return nil, errors.New("permission denied")
}
func (failingStore) Save(context.Context, []domain.Target) error { return nil }
