// Package filetree renders working and output locations of task files from
// named template sets.
//
// A template set maps context names (working, output...) to a mount point, a
// root folder and one folder and file name template per entity category.
// Templates reference task data through <Tag> markers such as <Project>,
// <Sequence>, <Shot> or <TaskType.short_name>.
package filetree
