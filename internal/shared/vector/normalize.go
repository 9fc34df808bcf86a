// Package vector はEmbeddingベクトルの小さな演算をまとめる
package vector

import "math"

// Normalize は L2 ノルムが1になるよう正規化したコピーを返す
// ゼロベクトルはそのまま返す
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
