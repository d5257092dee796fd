package numpy

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"os"
	"strconv"
)

// DType is a NumPy array-protocol type string
type DType string

const Uint8 DType = "<u1"

// Writer handles writing arrays to NumPy (.npy) files
type Writer struct {
	file  *os.File
	dtype DType
}

// NewWriter creates a NumPy writer for the given file and element type
func NewWriter(filepath string, dtype DType) (*Writer, error) {
	file, err := os.Create(filepath)
	if err != nil {
		return nil, fmt.Errorf("error creating npy file: %w", err)
	}
	return &Writer{file: file, dtype: dtype}, nil
}

// Close closes the underlying file
func (w *Writer) Close() error {
	return w.file.Close()
}

// Write writes raw little endian data with the given shape
func (w *Writer) Write(data []byte, shape []int) error {
	if want := elementSize(w.dtype) * count(shape); want != len(data) {
		return fmt.Errorf("shape %v needs %d bytes, got %d", shape, want, len(data))
	}

	header, err := createHeader(w.dtype, shape)
	if err != nil {
		return fmt.Errorf("error creating numpy header: %w", err)
	}
	if _, err := w.file.Write(header); err != nil {
		return fmt.Errorf("error writing npy header: %w", err)
	}
	if _, err := w.file.Write(data); err != nil {
		return fmt.Errorf("error writing npy data: %w", err)
	}
	return nil
}

// WriteFrames writes same sized frames as a uint8 array of shape (N, H, W, 3) in RGB order
func WriteFrames(path string, frames []*image.RGBA) error {
	var width, height int
	if len(frames) > 0 {
		b := frames[0].Bounds()
		width, height = b.Dx(), b.Dy()
	}

	data := make([]byte, 0, len(frames)*width*height*3)
	for i, f := range frames {
		b := f.Bounds()
		if b.Dx() != width || b.Dy() != height {
			return fmt.Errorf("frame %d is %dx%d, want %dx%d", i, b.Dx(), b.Dy(), width, height)
		}
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := f.Pix[f.PixOffset(b.Min.X, y):f.PixOffset(b.Max.X, y)]
			for j := 0; j+3 < len(row); j += 4 {
				data = append(data, row[j], row[j+1], row[j+2])
			}
		}
	}

	w, err := NewWriter(path, Uint8)
	if err != nil {
		return err
	}
	if err := w.Write(data, []int{len(frames), height, width, 3}); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func elementSize(dtype DType) int {
	n, err := strconv.Atoi(string(dtype[2:]))
	if err != nil {
		return 1
	}
	return n
}

func count(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// createHeader creates a NumPy v1.0 array header for the given dtype and shape
func createHeader(dtype DType, shape []int) ([]byte, error) {
	var dict bytes.Buffer
	fmt.Fprintf(&dict, "{'descr': '%s', 'fortran_order': False, 'shape': (", dtype)
	for i, s := range shape {
		dict.WriteString(strconv.Itoa(s))
		if i < len(shape)-1 || len(shape) == 1 {
			dict.WriteString(",")
		}
		if i < len(shape)-1 {
			dict.WriteString(" ")
		}
	}
	dict.WriteString("), }")

	// magic(6) + version(2) + header_len(2) + dict + padding + '\n' must be 64 byte aligned
	preamble := 10
	padding := (64 - (preamble+dict.Len()+1)%64) % 64
	headerLen := dict.Len() + padding + 1
	if headerLen > 0xffff {
		return nil, fmt.Errorf("header too long for npy v1.0: %d bytes", headerLen)
	}

	var header bytes.Buffer
	header.Write([]byte{0x93, 'N', 'U', 'M', 'P', 'Y', 0x01, 0x00})
	if err := binary.Write(&header, binary.LittleEndian, uint16(headerLen)); err != nil {
		return nil, fmt.Errorf("failed to write header dictionary length: %w", err)
	}
	header.Write(dict.Bytes())
	header.Write(bytes.Repeat([]byte{' '}, padding))
	header.WriteByte('\n')
	return header.Bytes(), nil
}
