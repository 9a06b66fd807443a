package tensor

import (
	"github.com/klauspost/cpuid/v2"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// #region kernels

// matMulKernel computes dst = x·w for a (rows, in) x and an (in, out) w,
// all row-major. dst is zeroed by the caller.
type matMulKernel func(x, w []float64, rows, in, out int, dst []float64)

const (
	KernelGemm = "gemm"
	KernelAxpy = "axpy"
)

var kernelName, matmul = selectMatMul(cpuid.CPU.Supports(cpuid.AVX2, cpuid.FMA3))

// selectMatMul picks the blocked gonum gemm on hosts with AVX2 and FMA, and
// row-wise axpy accumulation otherwise.
func selectMatMul(wideSIMD bool) (string, matMulKernel) {
	if wideSIMD {
		return KernelGemm, gemm
	}
	return KernelAxpy, axpy
}

// Kernel names the matmul kernel chosen for this host.
func Kernel() string { return kernelName }

func gemm(x, w []float64, rows, in, out int, dst []float64) {
	a := mat.NewDense(rows, in, x)
	b := mat.NewDense(in, out, w)
	c := mat.NewDense(rows, out, dst)
	c.Mul(a, b)
}

func axpy(x, w []float64, rows, in, out int, dst []float64) {
	for r := 0; r < rows; r++ {
		or := dst[r*out : (r+1)*out]
		for k, xv := range x[r*in : (r+1)*in] {
			if xv == 0 {
				continue
			}
			floats.AddScaled(or, xv, w[k*out:(k+1)*out])
		}
	}
}

// #endregion kernels
