package combinator

// Combinations gera todos os subconjuntos de tamanho k de {0..n-1} em ordem lexicográfica
func Combinations(n, k int) [][]int {
	if k <= 0 || k > n {
		return nil
	}
	var out [][]int
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		out = append(out, append([]int(nil), idx...))
		// avança o índice mais à direita que ainda pode crescer
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return out
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// Binomial é C(n,k)
func Binomial(n, k int) int {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	r := 1
	for i := 1; i <= k; i++ {
		r = r * (n - k + i) / i
	}
	return r
}

// ReverseSequences é o catálogo fixo da aposta reversa: para cada par {i,j}, [i,j] e [j,i]
func ReverseSequences(n int) [][]int {
	var out [][]int
	for _, pair := range Combinations(n, 2) {
		out = append(out, []int{pair[0], pair[1]}, []int{pair[1], pair[0]})
	}
	return out
}
