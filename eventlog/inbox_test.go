package eventlog_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/progress/eventlog"
)

var _ = Describe("Inbox", func() {
	var (
		in *eventlog.Inbox
		l  *eventlog.Log
	)

	BeforeEach(func() {
		in = eventlog.NewInbox()
		l = eventlog.NewLog(0)
	})

	It("should accept payloads without a drainer", func() {
		for i := 0; i < 10000; i++ {
			Expect(in.Put([]byte("x"))).To(BeTrue())
		}

		Expect(in.Len()).To(Equal(10000))
	})

	It("should copy payloads", func() {
		payload := []byte("A")
		in.Put(payload)
		payload[0] = 'Z'

		ctx, cancel := context.WithCancel(context.Background())
		go in.Drain(ctx, l)
		defer cancel()

		Eventually(l.Len).Should(Equal(1))
		entries, _, _ := l.Read(0)
		Expect(payloads(entries)).To(Equal([]string{"A"}))
	})

	It("should drain payloads in order", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go in.Drain(ctx, l)

		expected := make([]string, 0, 100)
		for i := 0; i < 100; i++ {
			p := fmt.Sprintf("count %d", i)
			expected = append(expected, p)
			in.Put([]byte(p))
		}

		Eventually(l.Len).Should(Equal(100))
		entries, _, _ := l.Read(0)
		Expect(payloads(entries)).To(Equal(expected))
	})

	It("should keep the order of each publisher with many publishers", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go in.Drain(ctx, l)

		var wg sync.WaitGroup
		for p := 0; p < 4; p++ {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					in.Put([]byte(fmt.Sprintf("%d-%03d", p, i)))
				}
			}(p)
		}
		wg.Wait()

		Eventually(l.Len).Should(Equal(200))

		entries, _, _ := l.Read(0)
		last := map[byte]string{}
		for _, e := range entries {
			key := e.Payload[0]
			Expect(string(e.Payload) > last[key]).To(BeTrue())
			last[key] = string(e.Payload)
		}
	})

	It("should stop when the context is done", func() {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		go func() {
			in.Drain(ctx, l)
			close(done)
		}()

		cancel()
		Eventually(done).Should(BeClosed())
	})

	It("should stop and refuse payloads once closed", func() {
		done := make(chan struct{})

		go func() {
			in.Drain(context.Background(), l)
			close(done)
		}()

		in.Close()
		in.Close()

		Eventually(done).Should(BeClosed())
		Expect(in.Put([]byte("late"))).To(BeFalse())
		Consistently(l.Len, 20*time.Millisecond).Should(Equal(0))
	})

	It("should let publishers race with closing", func() {
		go in.Drain(context.Background(), l)

		var (
			wg       sync.WaitGroup
			accepted [4]int
		)

		for p := 0; p < 4; p++ {
			wg.Add(1)
			go func(p int) {
				defer GinkgoRecover()
				defer wg.Done()

				for i := 0; i < 1000; i++ {
					if in.Put([]byte("x")) {
						accepted[p]++
					}
				}
			}(p)
		}

		time.Sleep(time.Millisecond)
		Expect(in.Close).NotTo(Panic())
		wg.Wait()

		Expect(in.Put([]byte("late"))).To(BeFalse())
		Expect(l.Len() + in.Len()).To(BeNumerically("<=",
			accepted[0]+accepted[1]+accepted[2]+accepted[3]))
	})
})
