package attrstore_test

import (
	"fmt"

	"github.com/hupe1980/attrstore"
)

func Example() {
	attr := attrstore.New[string]("tags")
	defer attr.Close()

	ref, _ := attr.Add("red")
	attr.Add("blue")
	attr.Add("red") // deduplicated, bumps the refcount

	fmt.Println(attr.Get(ref))
	fmt.Println(attr.RefCount(ref))
	fmt.Println(attr.NewEnumerator().Values())
	// Output:
	// red
	// 2
	// [blue red]
}
