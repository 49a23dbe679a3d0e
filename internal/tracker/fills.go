package tracker

// WeightedAverage folds one fill into the running quantity-weighted
// average executed price. The price resets to 0 whenever the total
// filled quantity is 0.
func WeightedAverage(oldQty int, oldPrice float64, deltaQty int, fillPrice float64) (newQty int, newPrice float64) {
	newQty = oldQty + deltaQty
	if newQty == 0 {
		return 0, 0
	}
	newPrice = (float64(oldQty)*oldPrice + float64(deltaQty)*fillPrice) / float64(newQty)
	return newQty, newPrice
}
