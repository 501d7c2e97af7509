/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package timer_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/reactor/timer"
)

var _ = Describe("Queue", func() {
	var q timer.Queue

	BeforeEach(func() {
		qq, err := timer.New()
		Expect(err).To(BeNil())
		q = qq
	})

	AfterEach(func() {
		_ = q.Close()
	})

	It("fires a one-shot timer once and retires it", func() {
		fired := 0
		q.Add(func(time.Time) { fired++ }, time.Now().Add(5*time.Millisecond), 0)

		Eventually(func() error { return q.HandleRead() }, "200ms", "5ms").Should(BeNil())
		time.Sleep(10 * time.Millisecond)
		_ = q.HandleRead()

		Expect(fired).To(Equal(1))
		Expect(q.Len()).To(Equal(0))
	})

	It("cancels a pending timer so it never fires", func() {
		fired := false
		id := q.Add(func(time.Time) { fired = true }, time.Now().Add(50*time.Millisecond), 0)
		q.Cancel(id)

		Expect(q.Len()).To(Equal(0))
		Expect(fired).To(BeFalse())
	})

	It("retires every due one-shot timer in a single read, leaving the set empty", func() {
		q.Add(func(time.Time) {}, time.Now().Add(5*time.Millisecond), 0)
		q.Add(func(time.Time) {}, time.Now().Add(5*time.Millisecond), 0)

		time.Sleep(10 * time.Millisecond)
		_ = q.HandleRead()

		Expect(q.Len()).To(Equal(0))
	})
})
