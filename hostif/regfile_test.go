package hostif

import (
	gomock "github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RegisterFile", func() {
	var (
		mockCtrl   *gomock.Controller
		mockDevice *MockDevice
		regs       *RegisterFile
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		mockDevice = NewMockDevice(mockCtrl)
		regs = NewRegisterFile(mockDevice)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	write := func(off, n int, v uint64) {
		for i := 0; i < n; i++ {
			regs.WriteReg(off+i, byte(v>>(8*i)))
		}
	}

	DescribeTable("STATUS",
		func(busy, faulted, halted bool, want uint8) {
			mockDevice.EXPECT().Busy().Return(busy).AnyTimes()
			mockDevice.EXPECT().Faulted().Return(faulted).AnyTimes()
			mockDevice.EXPECT().Halted().Return(halted).AnyTimes()

			Expect(regs.ReadReg(RegStatus)).To(Equal(want))
		},
		Entry("idle", false, false, false, StatusIdle),
		Entry("busy", true, false, false, StatusBusy),
		Entry("faulted", false, true, false, StatusFaulted),
		Entry("halted", false, false, true, StatusHalted),
	)

	It("should ignore writes to STATUS and unmapped offsets", func() {
		regs.WriteReg(RegStatus, 0x55)
		regs.WriteReg(0x40, 0x55)

		Expect(regs.ReadReg(0x40)).To(BeZero())
		Expect(regs.Pending()).To(BeFalse())
	})

	It("should assemble little-endian registers", func() {
		write(RegAddr, 2, 0xBEEF)
		write(RegArg, 4, 0x01020304)
		write(RegMMVR, 7, 0x00_66554433221100)

		Expect(regs.Addr()).To(Equal(uint16(0xBEEF)))
		Expect(regs.ReadReg(RegAddr)).To(Equal(byte(0xEF)))
		Expect(regs.Arg()).To(Equal(uint32(0x01020304)))
		Expect(regs.MMVR()).To(Equal(uint64(0x66554433221100)))
	})

	It("should not dispatch before the doorbell rings", func() {
		regs.WriteReg(RegCmd, CmdWriteMem)
		write(RegMMVR, 7, 0xFFFFFFFFFFFFFF)

		Expect(regs.Tick()).To(BeFalse())
	})

	It("should write memory on the doorbell", func() {
		mockDevice.EXPECT().WriteWord(0x1234, uint64(0x1122334455667788))

		write(RegAddr, 2, 0x1234)
		regs.WriteReg(RegCmd, CmdWriteMem)
		write(RegMMVR, 8, 0x1122334455667788)

		Expect(regs.Pending()).To(BeTrue())
		Expect(regs.Tick()).To(BeTrue())
		Expect(regs.Tick()).To(BeFalse())
		Expect(regs.Dispatched()).To(Equal(uint64(1)))
	})

	It("should load MMVR on a read", func() {
		mockDevice.EXPECT().ReadWord(0x20).Return(uint64(0xAABBCCDD00112233))

		write(RegAddr, 2, 0x20)
		regs.WriteReg(RegCmd, CmdReadMem)
		regs.WriteReg(RegDoorbell, 0)
		regs.Tick()

		Expect(regs.MMVR()).To(Equal(uint64(0xAABBCCDD00112233)))
		Expect(regs.ReadReg(RegDoorbell)).To(Equal(byte(0xAA)))
	})

	It("should start the device at ARG", func() {
		mockDevice.EXPECT().Start(7)

		write(RegArg, 4, 7)
		regs.WriteReg(RegCmd, CmdRun)
		regs.WriteReg(RegDoorbell, 0)

		Expect(regs.Tick()).To(BeTrue())
	})

	It("should drop unknown commands", func() {
		regs.WriteReg(RegCmd, 0x7F)
		regs.WriteReg(RegDoorbell, 0)

		Expect(regs.Tick()).To(BeFalse())
		Expect(regs.Pending()).To(BeFalse())
		Expect(regs.Dispatched()).To(BeZero())
	})
})
