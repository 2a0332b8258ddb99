package progress_test

import (
	"errors"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/sarchlab/progress/hooking"
	"github.com/sarchlab/progress/idgen"
	"github.com/sarchlab/progress/progress"
	"github.com/sarchlab/progress/timing"
)

var _ = Describe("Context", func() {
	var (
		mockCtrl *gomock.Controller
		ticks    *clockTicks
		r        *progress.Registry
		main     *progress.Thread
		root     *progress.Context
	)

	BeforeEach(func() {
		var clock *MockClock

		mockCtrl = gomock.NewController(GinkgoT())
		clock, ticks = newTickingClock(mockCtrl)
		r = progress.NewRegistry(clock)
		main = r.Main()
		root = main.Current()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should start with an open Main root", func() {
		Expect(root).NotTo(BeNil())
		Expect(root.Name()).To(Equal("Main"))
		Expect(root.Closed()).To(BeFalse())
		Expect(root.Thread()).To(Equal(progress.MainThread))
		Expect(main.Roots()).To(Equal([]*progress.Context{root}))
	})

	It("should track the deepest open context", func() {
		a := main.Open("a")
		Expect(main.Current()).To(BeIdenticalTo(a))

		b := main.Open("b")
		Expect(main.Current()).To(BeIdenticalTo(b))

		b.Close()
		Expect(b.Closed()).To(BeTrue())
		Expect(main.Current()).To(BeIdenticalTo(a))

		a.Close()
		Expect(a.Closed()).To(BeTrue())
		Expect(main.Current()).To(BeIdenticalTo(root))
		Expect(root.Closed()).To(BeFalse())

		Expect(root.Children()).To(Equal([]*progress.Context{a}))
		Expect(a.Children()).To(Equal([]*progress.Context{b}))
	})

	It("should keep children in opening order", func() {
		a := main.Open("a")
		a.Close()
		b := main.Open("b")
		b.Close()
		c := main.Open("a")

		Expect(root.Children()).To(Equal([]*progress.Context{a, b, c}))
		Expect(main.Current()).To(BeIdenticalTo(c))
	})

	It("should not let a closed context acquire children", func() {
		a := main.Open("a")
		a.Close()

		b := main.Open("b")

		Expect(a.Children()).To(BeEmpty())
		Expect(root.Children()).To(Equal([]*progress.Context{a, b}))
	})

	It("should start a new root after the last root is closed", func() {
		root.Close()
		Expect(main.Current()).To(BeNil())

		c := main.Open("again")

		Expect(main.Roots()).To(Equal([]*progress.Context{root, c}))
		Expect(main.Current()).To(BeIdenticalTo(c))
		Expect(root.Children()).To(BeEmpty())
	})

	It("should move back to the nearest open ancestor if a middle context closes first", func() {
		a := main.Open("a")
		b := main.Open("b")

		a.Close()

		Expect(main.Current()).To(BeIdenticalTo(root))
		Expect(b.Closed()).To(BeFalse())
	})

	It("should keep the first measurement when closed twice", func() {
		c := main.Open("c")

		c.Close()
		endPerf, closed := c.EndPerf()
		Expect(closed).To(BeTrue())
		endCPU, _ := c.EndCPU()
		reads := ticks.perfReads

		c.Close()

		Expect(ticks.perfReads).To(Equal(reads))
		secondPerf, _ := c.EndPerf()
		secondCPU, _ := c.EndCPU()
		Expect(secondPerf).To(Equal(endPerf))
		Expect(secondCPU).To(Equal(endCPU))
	})

	It("should report no end while open", func() {
		c := main.Open("c")

		_, closed := c.EndPerf()
		Expect(closed).To(BeFalse())
		_, closed = c.EndCPU()
		Expect(closed).To(BeFalse())
	})

	It("should grow elapsed times while open and freeze them once closed", func() {
		c := main.Open("c")

		perf1, cpu1 := c.PerfElapsed(), c.CPUElapsed()
		perf2, cpu2 := c.PerfElapsed(), c.CPUElapsed()
		Expect(perf2).To(BeNumerically(">=", perf1))
		Expect(cpu2).To(BeNumerically(">=", cpu1))
		Expect(perf1).To(BeNumerically(">=", 0))
		Expect(cpu1).To(BeNumerically(">=", 0))

		c.Close()

		frozenPerf, frozenCPU := c.PerfElapsed(), c.CPUElapsed()
		Expect(c.PerfElapsed()).To(Equal(frozenPerf))
		Expect(c.CPUElapsed()).To(Equal(frozenCPU))
		Expect(frozenPerf).To(BeNumerically(">=", perf2))
	})

	It("should start children no earlier than their parent", func() {
		a := main.Open("a")
		b := main.Open("b")

		Expect(b.StartPerf()).To(BeNumerically(">=", a.StartPerf()))
		Expect(a.StartPerf()).To(BeNumerically(">=", root.StartPerf()))
	})

	It("should assign increasing identities", func() {
		a := main.Open("a")
		b := main.Open("b")

		Expect(root.ID()).To(Equal(idgen.ID(1)))
		Expect(a.ID()).To(Equal(idgen.ID(2)))
		Expect(b.ID()).To(Equal(idgen.ID(3)))
		Expect(b.String()).To(Equal("b(#3)"))
	})

	Context("when using Do", func() {
		It("should run the function inside the context", func() {
			var inside *progress.Context

			err := main.Do("work", func() error {
				inside = main.Current()
				return nil
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(inside.Name()).To(Equal("work"))
			Expect(inside.Closed()).To(BeTrue())
			Expect(main.Current()).To(BeIdenticalTo(root))
		})

		It("should close the context and forward the error", func() {
			failure := errors.New("failure")

			err := main.Do("work", func() error { return failure })

			Expect(err).To(BeIdenticalTo(failure))
			Expect(root.Children()[0].Closed()).To(BeTrue())
		})

		It("should close the context when the function panics", func() {
			Expect(func() {
				_ = main.Do("work", func() error { panic("boom") })
			}).To(PanicWith("boom"))

			Expect(root.Children()[0].Closed()).To(BeTrue())
			Expect(main.Current()).To(BeIdenticalTo(root))
		})
	})
})

var _ = Describe("Registry", func() {
	var (
		mockCtrl *gomock.Controller
		ticks    *clockTicks
		r        *progress.Registry
	)

	BeforeEach(func() {
		var clock *MockClock

		mockCtrl = gomock.NewController(GinkgoT())
		clock, ticks = newTickingClock(mockCtrl)
		r = progress.NewRegistry(clock)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should reset the clock when built", func() {
		Expect(ticks.resets).To(Equal(1))
	})

	It("should return no context for an unknown thread", func() {
		Expect(r.Current("worker")).To(BeNil())

		_, found := r.Lookup("worker")
		Expect(found).To(BeFalse())
	})

	It("should make the first context of a new thread a root", func() {
		worker := r.Thread("worker")
		Expect(worker.Current()).To(BeNil())

		c := worker.Open("job")

		Expect(worker.Roots()).To(Equal([]*progress.Context{c}))
		Expect(r.Current("worker")).To(BeIdenticalTo(c))
		Expect(r.Thread("worker")).To(BeIdenticalTo(worker))
		Expect(r.Main().Current().Children()).To(BeEmpty())
	})

	It("should list threads with the main thread first", func() {
		r.Thread("b")
		r.Thread("a")

		Expect(r.Threads()).To(Equal([]progress.ThreadID{progress.MainThread, "a", "b"}))
	})

	It("should find contexts by identity", func() {
		a := r.Main().Open("a")
		w := r.Thread("worker").Open("w")

		found, ok := r.Find(a.ID())
		Expect(ok).To(BeTrue())
		Expect(found).To(BeIdenticalTo(a))

		found, ok = r.Find(w.ID())
		Expect(ok).To(BeTrue())
		Expect(found).To(BeIdenticalTo(w))

		_, ok = r.Find(idgen.ID(1000))
		Expect(ok).To(BeFalse())
	})

	It("should start a new epoch on reset", func() {
		r.Main().Open("a")
		r.Thread("worker").Open("w")

		r.Reset()

		Expect(ticks.resets).To(Equal(2))
		Expect(r.Threads()).To(Equal([]progress.ThreadID{progress.MainThread}))
		root := r.Main().Current()
		Expect(root.Name()).To(Equal("Main"))
		Expect(root.ID()).To(Equal(idgen.ID(1)))
		Expect(root.Children()).To(BeEmpty())
	})

	It("should use the configured main thread", func() {
		custom := progress.MakeBuilder().
			WithClock(timing.NewSystemClock()).
			WithMainThread("ui").
			Build()

		Expect(custom.Threads()).To(Equal([]progress.ThreadID{"ui"}))
		Expect(custom.Current("ui").Name()).To(Equal("Main"))
	})

	It("should panic without a main thread", func() {
		Expect(func() { progress.MakeBuilder().WithMainThread("").Build() }).To(Panic())
	})

	It("should return a process-wide default registry", func() {
		Expect(progress.Default()).To(BeIdenticalTo(progress.Default()))
		Expect(progress.Default().Main().Current()).NotTo(BeNil())
	})

	Context("with hooks", func() {
		type call struct {
			pos    *hooking.HookPos
			item   *progress.Context
			parent *progress.Context
		}

		var calls []call

		BeforeEach(func() {
			calls = nil
			r.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
				parent, _ := ctx.Detail.(*progress.Context)
				calls = append(calls, call{
					pos:    ctx.Pos,
					item:   ctx.Item.(*progress.Context),
					parent: parent,
				})
				Expect(ctx.Domain).To(BeIdenticalTo(r))
			}))
		})

		It("should notify open and close", func() {
			root := r.Main().Current()

			a := r.Main().Open("a")
			a.Close()
			a.Close()

			Expect(calls).To(Equal([]call{
				{pos: progress.HookPosContextOpen, item: a, parent: root},
				{pos: progress.HookPosContextClose, item: a},
			}))
		})

		It("should notify the new root on reset", func() {
			r.Reset()

			Expect(calls).To(HaveLen(1))
			Expect(calls[0].pos).To(BeIdenticalTo(progress.HookPosContextOpen))
			Expect(calls[0].item.Name()).To(Equal("Main"))
			Expect(calls[0].parent).To(BeNil())
		})

		It("should see the Main root when registered through the builder", func() {
			var names []string
			progress.MakeBuilder().
				WithClock(timing.NewSystemClock()).
				WithHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
					names = append(names, ctx.Item.(*progress.Context).Name())
				})).
				Build()

			Expect(names).To(Equal([]string{"Main"}))
		})
	})
})

var _ = Describe("Registry with concurrent threads", func() {
	It("should give unique identities and independent trees", func() {
		r := progress.NewRegistry(timing.NewSystemClock())

		const workers, depth = 8, 50

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer GinkgoRecover()
				defer wg.Done()

				t := r.Thread(progress.ThreadID(fmt.Sprintf("worker-%d", w)))
				opened := make([]*progress.Context, 0, depth)
				for i := 0; i < depth; i++ {
					opened = append(opened, t.Open(fmt.Sprintf("level-%d", i)))
					Expect(t.Current()).To(BeIdenticalTo(opened[i]))
				}
				for i := depth - 1; i >= 0; i-- {
					opened[i].Close()
				}
				Expect(t.Current()).To(BeNil())
			}(w)
		}

		// Reading other threads while they are being written is allowed.
		for i := 0; i < 100; i++ {
			_ = r.Snapshot()
		}

		wg.Wait()

		seen := make(map[idgen.ID]bool)
		for _, rec := range r.Snapshot() {
			Expect(seen[rec.ID]).To(BeFalse())
			seen[rec.ID] = true
		}

		Expect(seen).To(HaveLen(workers*depth + 1))
	})
})
