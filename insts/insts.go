// Package insts provides the accelerator instruction definitions and
// decoding.
//
// An instruction occupies four consecutive 64-bit words of the instruction
// store. Word 3 carries the opcode, the flags and three 16-bit fields; word 2
// carries three more 16-bit fields; words 0 and 1 are reserved.
//
//	word 3: op[63:60] flags[59:56] f0[55:40] f1[39:24] f2[23:8]
//	word 2:                        f3[55:40] f4[39:24] f5[23:8]
//
// Supported operations:
//   - NOP: no effect
//   - HALT: stop the sequencer
//   - MOVE: copy Length buffer words from Src to Dst
//   - MATMUL: tiled matrix multiply of Mt x Kt A-tiles by Kt x Nt B-tiles
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(insts.Matmul(0x000, 0x100, 0x200, 2, 3, 2).Encode())
//	fmt.Printf("Op: %v, tiles: %dx%dx%d\n", inst.Op, inst.MTiles, inst.KTiles, inst.NTiles)
package insts
