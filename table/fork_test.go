package table

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Fork", func() {
	var fork *Fork

	BeforeEach(func() {
		fork = newFork(3)
	})

	It("should start free", func() {
		Expect(fork.ID()).To(Equal(3))
		Expect(fork.Holder()).To(Equal(freeHolder))
	})

	It("should record the holder after acquisition", func() {
		err := fork.Acquire(context.Background(), 1, 0)

		Expect(err).ToNot(HaveOccurred())
		Expect(fork.Holder()).To(Equal(1))
	})

	It("should reject acquiring a fork the actor already holds", func() {
		Expect(fork.Acquire(context.Background(), 1, 0)).To(Succeed())

		err := fork.Acquire(context.Background(), 1, 0)

		var violation *OwnershipViolation
		Expect(errors.As(err, &violation)).To(BeTrue())
		Expect(violation.ActorID).To(Equal(1))
		Expect(violation.ForkID).To(Equal(3))
		Expect(violation.Op).To(Equal("acquire"))
	})

	It("should stop a blocked acquisition on cancellation", func() {
		Expect(fork.Acquire(context.Background(), 1, 0)).To(Succeed())

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error)
		go func() {
			errCh <- fork.Acquire(ctx, 2, 0)
		}()

		cancel()

		Expect(<-errCh).To(MatchError(context.Canceled))
		Expect(fork.Holder()).To(Equal(1))
	})

	It("should try-acquire without blocking", func() {
		Expect(fork.TryAcquire(1, 0)).To(BeTrue())
		Expect(fork.TryAcquire(2, 0)).To(BeFalse())
		Expect(fork.Holder()).To(Equal(1))
	})

	It("should free the fork on release", func() {
		Expect(fork.TryAcquire(1, 0)).To(BeTrue())
		Expect(fork.Release(1, 0)).To(Succeed())

		Expect(fork.Holder()).To(Equal(freeHolder))
		Expect(fork.TryAcquire(2, 1)).To(BeTrue())
	})

	It("should reject a release by a non-holder", func() {
		Expect(fork.TryAcquire(1, 0)).To(BeTrue())

		err := fork.Release(2, 0)

		var violation *OwnershipViolation
		Expect(errors.As(err, &violation)).To(BeTrue())
		Expect(violation.Op).To(Equal("release"))
		Expect(violation.Holder).To(Equal(1))
		Expect(fork.Holder()).To(Equal(1))
	})
})
