package table

import (
	"errors"
	"runtime"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Builder", func() {
	It("should reject fewer than 2 actors", func() {
		_, err := MakeBuilder().WithNumActors(1).Build("Table")

		var configErr *ConfigError
		Expect(errors.As(err, &configErr)).To(BeTrue())
		Expect(configErr.Field).To(Equal("actors"))
	})

	It("should reject fewer than 1 cycle", func() {
		_, err := MakeBuilder().WithCyclesPerActor(0).Build("Table")

		var configErr *ConfigError
		Expect(errors.As(err, &configErr)).To(BeTrue())
		Expect(configErr.Field).To(Equal("cycles"))
	})

	It("should wire ring adjacency with modular arithmetic", func() {
		t, err := MakeBuilder().WithNumActors(5).Build("Table")
		Expect(err).ToNot(HaveOccurred())

		for i, p := range t.Actors() {
			Expect(p.Left().ID()).To(Equal(i))
			Expect(p.Right().ID()).To(Equal((i + 1) % 5))
		}
	})

	It("should share each fork between exactly two adjacent actors", func() {
		t, _ := MakeBuilder().WithNumActors(4).Build("Table")

		users := make(map[int]int)
		for _, p := range t.Actors() {
			users[p.Left().ID()]++
			users[p.Right().ID()]++
		}

		for _, f := range t.Forks() {
			Expect(users[f.ID()]).To(Equal(2))
		}
	})

	It("should build independent tables with no shared state", func() {
		t1, _ := MakeBuilder().WithNumActors(3).Build("Table1")
		t2, _ := MakeBuilder().WithNumActors(3).Build("Table2")

		Expect(t1.Forks()[0].TryAcquire(0, 0)).To(BeTrue())

		Expect(t2.Forks()[0].Holder()).To(Equal(freeHolder))
		Expect(t2.Forks()[0].TryAcquire(0, 0)).To(BeTrue())
	})

	It("should not start any goroutine before the run", func() {
		before := runtime.NumGoroutine()

		for i := 0; i < 20; i++ {
			_, err := MakeBuilder().WithPolicy(PolicyFair).Build("Table")
			Expect(err).ToNot(HaveOccurred())
		}

		Expect(runtime.NumGoroutine()).To(BeNumerically("<=", before))
	})

	It("should name the first actors after the classics", func() {
		t, _ := MakeBuilder().WithNumActors(12).Build("Table")

		Expect(t.Actors()[0].Name()).To(Equal("Plato"))
		Expect(t.Actors()[11].Name()).To(Equal("Philosopher11"))
	})
})
