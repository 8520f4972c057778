package buffer_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tinynpu/npu"
	"github.com/sarchlab/tinynpu/timing/buffer"
)

var _ = Describe("Buffer", func() {
	var (
		buf     *buffer.Buffer
		noWrite buffer.WriteReq
		noRead  [2]buffer.ReadReq
	)

	BeforeEach(func() {
		buf = buffer.NewBuffer(4, 1024)
	})

	write := func(addr int, row ...uint16) {
		buf.Tick(buffer.WriteReq{Addr: addr, Data: row, Enable: true}, noRead)
	}

	readInput := func(addr int) buffer.ReadReq {
		return buffer.ReadReq{Addr: addr, Enable: true}
	}

	It("should start zeroed", func() {
		Expect(buf.Peek(17)).To(Equal([]uint16{0, 0, 0, 0}))
		Expect(buf.Output(buffer.PortInput).Row).To(Equal([]uint16{0, 0, 0, 0}))
	})

	It("should return a row one cycle after the address is presented", func() {
		write(5, 1, 2, 3, 4)

		buf.Tick(noWrite, [2]buffer.ReadReq{readInput(5)})

		Expect(buf.Output(buffer.PortInput).Row).To(Equal([]uint16{1, 2, 3, 4}))
	})

	It("should serve both read ports independently", func() {
		write(1, 1, 1, 1, 1)
		write(900, 9, 9, 9, 9)

		buf.Tick(noWrite, [2]buffer.ReadReq{
			{Addr: 900, Enable: true, Last: true},
			{Addr: 1, Enable: true, First: true},
		})

		in := buf.Output(buffer.PortInput)
		w := buf.Output(buffer.PortWeight)
		Expect(in).To(Equal(buffer.Word{Row: []uint16{9, 9, 9, 9}, Last: true}))
		Expect(w).To(Equal(buffer.Word{Row: []uint16{1, 1, 1, 1}, First: true}))
	})

	It("should return the pre-write row on a same-cycle read", func() {
		write(42, 1, 1, 1, 1)

		buf.Tick(
			buffer.WriteReq{Addr: 42, Data: []uint16{2, 2, 2, 2}, Enable: true},
			[2]buffer.ReadReq{readInput(42), readInput(42)},
		)
		Expect(buf.Output(buffer.PortInput).Row).To(Equal([]uint16{1, 1, 1, 1}))
		Expect(buf.Output(buffer.PortWeight).Row).To(Equal([]uint16{1, 1, 1, 1}))

		buf.Tick(noWrite, [2]buffer.ReadReq{readInput(42)})
		Expect(buf.Output(buffer.PortInput).Row).To(Equal([]uint16{2, 2, 2, 2}))
	})

	It("should present a bubble when a read is disabled", func() {
		write(3, 5, 6, 7, 8)
		buf.Tick(noWrite, [2]buffer.ReadReq{
			{Addr: 3, Enable: true, First: true},
		})

		buf.Tick(noWrite, noRead)

		Expect(buf.Output(buffer.PortInput)).
			To(Equal(buffer.Word{Row: []uint16{0, 0, 0, 0}}))
	})

	It("should wrap addresses beyond the depth", func() {
		write(1024+7, 7, 7, 7, 7)

		Expect(buf.Peek(7)).To(Equal([]uint16{7, 7, 7, 7}))
		Expect(buf.Peek(-1017)).To(Equal([]uint16{7, 7, 7, 7}))
	})

	It("should not let callers alias the output row", func() {
		write(0, 1, 2, 3, 4)
		buf.Tick(noWrite, [2]buffer.ReadReq{readInput(0)})

		row := buf.Output(buffer.PortInput).Row
		row[0] = 99

		Expect(buf.Output(buffer.PortInput).Row[0]).To(Equal(uint16(1)))
	})

	It("should attach read markers to the edge lanes", func() {
		w := buffer.Word{Row: []uint16{1, 2, 3, 4}, First: true, Last: true}

		Expect(w.Lanes()).To(Equal([]npu.Lane{
			{Value: 1, First: true}, {Value: 2}, {Value: 3}, {Value: 4, Last: true},
		}))
	})

	It("should keep contents but clear ports on reset", func() {
		buf.Poke(10, []uint16{4, 3, 2, 1})
		buf.Tick(noWrite, [2]buffer.ReadReq{readInput(10)})

		buf.Reset()

		Expect(buf.Output(buffer.PortInput).Row).To(Equal([]uint16{0, 0, 0, 0}))
		Expect(buf.Peek(10)).To(Equal([]uint16{4, 3, 2, 1}))
	})
})
