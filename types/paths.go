package types

import "fmt"

// StagedFolder is the folder of a staged version relative to the store root.
func StagedFolder(concept string, n StageNumber) string {
	return fmt.Sprintf("%s/staged/%d", concept, n)
}

// PublishedFolder is the folder of a published version relative to the
// store root.
func PublishedFolder(concept string, n PublishNumber) string {
	return fmt.Sprintf("%s/%d", concept, n)
}

func (n StageNumber) String() string {
	return fmt.Sprintf("staged/%d", int(n))
}

func (n PublishNumber) String() string {
	return fmt.Sprintf("%d", int(n))
}
