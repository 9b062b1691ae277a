package types

import "time"

// Person is an identity cluster of faces. Created by the face matcher when no
// existing person clears the similarity threshold; renames come from outside
// this pipeline.
type Person struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"column:name" json:"name"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Person) TableName() string { return "person" }
