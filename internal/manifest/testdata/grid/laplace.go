func laplace(f Field[I, J, float64]) Field[I, J, float64] {
	c := f(IC)(JC)
	return -4*c + f(IM)(JC) + f(IP)(JC) + f(IC)(JM) + f(IC)(JP)
}
