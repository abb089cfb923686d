// Package facelabel assigns a plane to every arrangement face.
//
// An Accumulator follows the arrangement through its events and keeps, per
// face, the roof and ground points that fall inside it. Label then picks
// the plane with the most points in each face and fills empty faces from
// their neighbours.
package facelabel
